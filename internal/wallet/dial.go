package wallet

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/quantumauth-io/quantum-wallet/internal/chains"
)

// ChainDialer dials cfg and probes eth_chainId so that a dead endpoint fails
// the attempt instead of the first query.
func ChainDialer(cfg chains.Config) Dialer {
	return func(ctx context.Context) (ChainClient, error) {
		c, err := chains.Dial(ctx, cfg)
		if err != nil {
			return nil, err
		}
		if _, err := c.GetChainID(ctx); err != nil {
			c.Close()
			return nil, errors.Wrapf(err, "probe %s", c.URL())
		}
		return c, nil
	}
}
