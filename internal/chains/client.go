// Package chains is the JSON-RPC client for one configured Ethereum endpoint.
// Every failure is marked with one of the package sentinels.
package chains

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/quantumauth-io/quantum-go-utils/log"
	"github.com/quantumauth-io/quantum-wallet/internal/constants"
)

const DefaultRequestTimeout = 15 * time.Second

type Config struct {
	RPCURL  string
	Timeout time.Duration

	// HTTPClient overrides the transport; its own timeout still applies.
	HTTPClient *http.Client
}

// GasEstimate is computed per request and never persisted.
type GasEstimate struct {
	GasLimit uint64
	GasPrice *big.Int
}

// Fee is GasLimit * GasPrice in wei.
func (g GasEstimate) Fee() *big.Int {
	if g.GasPrice == nil {
		return new(big.Int)
	}
	return new(big.Int).Mul(new(big.Int).SetUint64(g.GasLimit), g.GasPrice)
}

// TxRequest describes a transfer or call. Zero GasLimit, nil GasPrice and nil
// Nonce are filled from the node.
type TxRequest struct {
	To       *common.Address
	Value    *big.Int
	Data     []byte
	GasLimit uint64
	GasPrice *big.Int
	Nonce    *uint64
}

type Client struct {
	url     string
	timeout time.Duration
	rpc     *rpc.Client
	eth     *ethclient.Client
}

// Dial validates the URL and prepares the client. HTTP dialing does not
// contact the node; use ChainID to probe it.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	raw := strings.TrimSpace(cfg.RPCURL)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, errors.Wrapf(ErrInvalidRPCURL, "%q", raw)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}

	rc, err := rpc.DialOptions(ctx, raw, rpc.WithHTTPClient(hc))
	if err != nil {
		return nil, mark(err, ErrInvalidRPCURL, "dial "+u.Host)
	}

	return &Client{
		url:     raw,
		timeout: timeout,
		rpc:     rc,
		eth:     ethclient.NewClient(rc),
	}, nil
}

func (c *Client) URL() string {
	return c.url
}

func (c *Client) Close() {
	c.eth.Close()
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

// ParseAddress accepts a 0x-prefixed or bare 40-char hex address.
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, errors.Wrapf(ErrInvalidAddress, "%q", s)
	}
	return common.HexToAddress(s), nil
}

func (c *Client) GetBalanceInWei(ctx context.Context, address string) (*big.Int, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	wei, err := c.eth.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, mark(err, ErrNetwork, "eth_getBalance")
	}
	return wei, nil
}

// GetBalance returns the balance in ETH with at most four fractional digits.
func (c *Client) GetBalance(ctx context.Context, address string) (string, error) {
	wei, err := c.GetBalanceInWei(ctx, address)
	if err != nil {
		return "", err
	}
	return FormatUnits(wei, constants.EtherDecimals, constants.BalanceMaxFrac), nil
}

func (c *Client) GetCurrentGasPrice(ctx context.Context) (*big.Int, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	price, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, mark(err, ErrNetwork, "eth_gasPrice")
	}
	return price, nil
}

// EstimateGas returns the gas limit for the call plus the current gas price.
func (c *Client) EstimateGas(ctx context.Context, from common.Address, to *common.Address, value *big.Int, data []byte) (GasEstimate, error) {
	price, err := c.GetCurrentGasPrice(ctx)
	if err != nil {
		return GasEstimate{}, err
	}

	limit, err := c.estimateGasLimit(ctx, from, to, value, data)
	if err != nil {
		return GasEstimate{}, err
	}
	return GasEstimate{GasLimit: limit, GasPrice: price}, nil
}

func (c *Client) estimateGasLimit(ctx context.Context, from common.Address, to *common.Address, value *big.Int, data []byte) (uint64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	limit, err := c.eth.EstimateGas(ctx, ethereum.CallMsg{
		From:  from,
		To:    to,
		Value: value,
		Data:  data,
	})
	if err != nil {
		return 0, mark(err, ErrGasEstimationFailed, "eth_estimateGas")
	}
	return limit, nil
}

func (c *Client) GetNonce(ctx context.Context, address common.Address) (uint64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	nonce, err := c.eth.PendingNonceAt(ctx, address)
	if err != nil {
		return 0, mark(err, ErrNetwork, "eth_getTransactionCount")
	}
	return nonce, nil
}

func (c *Client) GetChainID(ctx context.Context) (*big.Int, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	id, err := c.eth.ChainID(ctx)
	if err != nil {
		return nil, mark(err, ErrNetwork, "eth_chainId")
	}
	return id, nil
}

func (c *Client) GetBlockNumber(ctx context.Context) (uint64, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	n, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return 0, mark(err, ErrNetwork, "eth_blockNumber")
	}
	return n, nil
}

// GetTransactionReceipt fails with ErrReceiptNotFound while the transaction
// is pending or unknown.
func (c *Client) GetTransactionReceipt(ctx context.Context, txHash string) (*types.Receipt, error) {
	h := strings.TrimSpace(txHash)
	if !isTxHash(h) {
		return nil, errors.Wrapf(ErrTransactionFailed, "malformed transaction hash %q", h)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	receipt, err := c.eth.TransactionReceipt(ctx, common.HexToHash(h))
	if errors.Is(err, ethereum.NotFound) {
		return nil, errors.Wrapf(ErrReceiptNotFound, "%s", h)
	}
	if err != nil {
		return nil, mark(err, ErrNetwork, "eth_getTransactionReceipt")
	}
	return receipt, nil
}

// SendTransaction fills gas and nonce, signs with key (EIP-155) and
// broadcasts. It returns the hash of the signed transaction.
func (c *Client) SendTransaction(ctx context.Context, req TxRequest, key *ecdsa.PrivateKey) (common.Hash, error) {
	if key == nil {
		return common.Hash{}, errors.Wrap(ErrTransactionFailed, "no signing key")
	}
	if req.To == nil && len(req.Data) == 0 {
		return common.Hash{}, errors.Wrap(ErrInvalidAddress, "missing recipient")
	}
	from := crypto.PubkeyToAddress(key.PublicKey)

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}

	gasPrice := req.GasPrice
	if gasPrice == nil {
		p, err := c.GetCurrentGasPrice(ctx)
		if err != nil {
			return common.Hash{}, err
		}
		gasPrice = p
	}

	gasLimit := req.GasLimit
	if gasLimit == 0 {
		l, err := c.estimateGasLimit(ctx, from, req.To, value, req.Data)
		if err != nil {
			return common.Hash{}, err
		}
		gasLimit = l
	}

	var nonce uint64
	if req.Nonce != nil {
		nonce = *req.Nonce
	} else {
		n, err := c.GetNonce(ctx, from)
		if err != nil {
			return common.Hash{}, err
		}
		nonce = n
	}

	chainID, err := c.GetChainID(ctx)
	if err != nil {
		return common.Hash{}, err
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       req.To,
		Value:    value,
		Data:     req.Data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), key)
	if err != nil {
		return common.Hash{}, mark(err, ErrTransactionFailed, "sign")
	}

	sendCtx, cancel := c.withTimeout(ctx)
	defer cancel()
	if err := c.eth.SendTransaction(sendCtx, signed); err != nil {
		return common.Hash{}, mark(err, ErrTransactionFailed, "eth_sendRawTransaction")
	}

	log.Info("transaction broadcast", "hash", signed.Hash().Hex(), "from", from.Hex(), "nonce", nonce)
	return signed.Hash(), nil
}

func isTxHash(s string) bool {
	if len(s) != 66 || !strings.HasPrefix(s, "0x") {
		return false
	}
	for _, c := range s[2:] {
		if !(c >= '0' && c <= '9') && !(c >= 'a' && c <= 'f') && !(c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}
