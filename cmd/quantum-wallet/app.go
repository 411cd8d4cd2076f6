package main

import (
	"context"
	"net"

	"github.com/cockroachdb/errors"
	"github.com/quantumauth-io/quantum-go-utils/log"
	clientconfig "github.com/quantumauth-io/quantum-wallet/cmd/quantum-wallet/config"
	"github.com/quantumauth-io/quantum-wallet/internal/biometric"
	"github.com/quantumauth-io/quantum-wallet/internal/chains"
	"github.com/quantumauth-io/quantum-wallet/internal/ethwallet/userwallet"
	"github.com/quantumauth-io/quantum-wallet/internal/helpers"
	"github.com/quantumauth-io/quantum-wallet/internal/keychain"
	"github.com/quantumauth-io/quantum-wallet/internal/pin"
	"github.com/quantumauth-io/quantum-wallet/internal/securefile"
	"github.com/quantumauth-io/quantum-wallet/internal/security"
	"github.com/quantumauth-io/quantum-wallet/internal/settings"
	"github.com/quantumauth-io/quantum-wallet/internal/wallet"
)

// app owns every long-lived component for one CLI invocation.
type app struct {
	cfg      *clientconfig.Config
	keychain *keychain.Store
	settings *settings.Store
	svc      *wallet.Service
}

func openApp(ctx context.Context, cfg *clientconfig.Config) (*app, error) {
	secret, err := securefile.LoadOrCreateKeyFile(cfg.DeviceKeyPath())
	if err != nil {
		return nil, err
	}
	defer helpers.ZeroBytes(secret)

	kc := keychain.NewStore(keychain.NewFileVault(cfg.KeychainPath()))
	if err := kc.Unlock(ctx, secret); err != nil {
		return nil, errors.Wrap(err, "unlock keychain")
	}

	st, err := settings.Open(ctx, cfg.SettingsPath())
	if err != nil {
		kc.Lock()
		return nil, err
	}

	var device biometric.Device = biometric.NoneDevice{}
	if cfg.Biometric.Enabled {
		log.Warn("biometric.enabled is set but no biometric device is available on this host")
	}
	gw := security.NewGateway(biometric.NewGate(device), pin.NewGate(kc), kc)

	svc, err := wallet.NewService(wallet.Deps{
		Gateway:  gw,
		Engine:   userwallet.NewEngine(),
		Settings: st,
		Dial: wallet.ChainDialer(chains.Config{
			RPCURL:  cfg.Chain.RPCURL,
			Timeout: cfg.Chain.RequestTimeout,
		}),
		MaxAttempts: cfg.Chain.InitAttempts,
	})
	if err != nil {
		_ = st.Close()
		kc.Lock()
		return nil, err
	}

	return &app{cfg: cfg, keychain: kc, settings: st, svc: svc}, nil
}

func (a *app) Close() {
	a.svc.Close()
	if err := a.settings.Close(); err != nil {
		log.Error("failed to close settings", "error", err)
	}
	a.keychain.Lock()
}

func (a *app) listenAddr() string {
	return net.JoinHostPort(a.cfg.Server.Host, a.cfg.Server.Port)
}

// authorize runs biometric-first wallet access, prompting for the PIN when
// the gateway asks for it.
func (a *app) authorize(ctx context.Context, reason string) error {
	outcome, err := a.svc.AuthenticateForWalletAccess(ctx, reason)
	if err != nil {
		return err
	}

	switch outcome {
	case security.Authenticated:
		return nil
	case security.PINRequired:
		p, err := helpers.PromptPIN("PIN: ")
		if err != nil {
			return err
		}
		return a.svc.AuthenticateWithPIN(ctx, p)
	default:
		return errors.New("wallet access denied")
	}
}
