package http

import (
	"context"
	"math/big"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/gin-gonic/gin"
	"github.com/quantumauth-io/quantum-go-utils/log"
	"github.com/quantumauth-io/quantum-wallet/internal/biometric"
	"github.com/quantumauth-io/quantum-wallet/internal/chains"
	"github.com/quantumauth-io/quantum-wallet/internal/keychain"
	"github.com/quantumauth-io/quantum-wallet/internal/pin"
	"github.com/quantumauth-io/quantum-wallet/internal/security"
	"github.com/quantumauth-io/quantum-wallet/internal/settings"
	"github.com/quantumauth-io/quantum-wallet/internal/wallet"
)

// WalletService is the part of wallet.Service exposed over HTTP.
type WalletService interface {
	State() wallet.InitState
	SecurityState(ctx context.Context) (security.State, error)
	BiometricType(ctx context.Context) biometric.Type
	Address(ctx context.Context) (string, error)
	Wallets(ctx context.Context) ([]settings.WalletRecord, error)
	Balance(ctx context.Context) (string, error)
	GasPrice(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	Receipt(ctx context.Context, txHash string) (*types.Receipt, error)
}

type Handler struct {
	svc WalletService
}

func NewHandler(svc WalletService) *Handler {
	return &Handler{svc: svc}
}

type securityStatusRes struct {
	State     string `json:"state"`
	Biometric string `json:"biometric"`
}

type walletRes struct {
	Address string         `json:"address"`
	Wallets []walletRecord `json:"wallets"`
}

type walletRecord struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Address   string `json:"address"`
	CreatedAt string `json:"created_at"`
}

type receiptRes struct {
	TxHash      string `json:"tx_hash"`
	Status      uint64 `json:"status"`
	BlockNumber string `json:"block_number,omitempty"`
	GasUsed     uint64 `json:"gas_used"`
}

// GET /health
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"chain":  h.svc.State().String(),
	})
}

// GET /security/status
func (h *Handler) SecurityStatus(c *gin.Context) {
	ctx := c.Request.Context()
	st, err := h.svc.SecurityState(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, securityStatusRes{
		State:     st.String(),
		Biometric: h.svc.BiometricType(ctx).String(),
	})
}

// GET /wallet
func (h *Handler) Wallet(c *gin.Context) {
	ctx := c.Request.Context()
	addr, err := h.svc.Address(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	records, err := h.svc.Wallets(ctx)
	if err != nil {
		writeError(c, err)
		return
	}

	res := walletRes{Address: addr, Wallets: make([]walletRecord, 0, len(records))}
	for _, r := range records {
		res.Wallets = append(res.Wallets, walletRecord{
			ID:        r.ID.String(),
			Name:      r.Name,
			Address:   r.Address,
			CreatedAt: r.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	c.JSON(http.StatusOK, res)
}

// GET /wallet/balance
func (h *Handler) Balance(c *gin.Context) {
	ctx := c.Request.Context()
	addr, err := h.svc.Address(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	bal, err := h.svc.Balance(ctx)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": addr, "balance": bal, "unit": "ETH"})
}

// GET /chain/gas
func (h *Handler) GasPrice(c *gin.Context) {
	price, err := h.svc.GasPrice(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"gas_price_wei":  price.String(),
		"gas_price_gwei": chains.FormatUnits(price, 9, 4),
	})
}

// GET /chain/block
func (h *Handler) BlockNumber(c *gin.Context) {
	n, err := h.svc.BlockNumber(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"block_number": n})
}

// GET /chain/receipt/:hash
func (h *Handler) Receipt(c *gin.Context) {
	hash := c.Param("hash")
	if b, err := hexutil.Decode(hash); err != nil || len(b) != 32 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction hash"})
		return
	}

	r, err := h.svc.Receipt(c.Request.Context(), hash)
	if err != nil {
		writeError(c, err)
		return
	}

	res := receiptRes{TxHash: r.TxHash.Hex(), Status: r.Status, GasUsed: r.GasUsed}
	if r.BlockNumber != nil {
		res.BlockNumber = r.BlockNumber.String()
	}
	c.JSON(http.StatusOK, res)
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, pin.ErrInvalidFormat),
		errors.Is(err, chains.ErrInvalidAddress):
		return http.StatusBadRequest
	case errors.Is(err, pin.ErrIncorrectPIN):
		return http.StatusUnauthorized
	case errors.Is(err, wallet.ErrNoWallet),
		errors.Is(err, chains.ErrReceiptNotFound):
		return http.StatusNotFound
	case errors.Is(err, pin.ErrNoPINSet),
		errors.Is(err, security.ErrNoSecuritySetup):
		return http.StatusConflict
	case errors.Is(err, keychain.ErrLocked):
		return http.StatusLocked
	case errors.Is(err, chains.ErrNetwork),
		errors.Is(err, chains.ErrTransactionFailed):
		return http.StatusBadGateway
	case errors.Is(err, wallet.ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
