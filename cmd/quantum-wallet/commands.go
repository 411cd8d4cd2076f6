package main

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/quantumauth-io/quantum-go-utils/log"
	clientconfig "github.com/quantumauth-io/quantum-wallet/cmd/quantum-wallet/config"
	"github.com/quantumauth-io/quantum-wallet/internal/chains"
	"github.com/quantumauth-io/quantum-wallet/internal/constants"
	"github.com/quantumauth-io/quantum-wallet/internal/ethwallet/userwallet"
	"github.com/quantumauth-io/quantum-wallet/internal/helpers"
	clienthttp "github.com/quantumauth-io/quantum-wallet/internal/http"
	"github.com/quantumauth-io/quantum-wallet/internal/wallet"
	"github.com/spf13/cobra"
)

// newRootCmd returns the command tree and a func that releases whatever
// PersistentPreRunE opened.
func newRootCmd() (*cobra.Command, func()) {
	var cfgFile string
	var a *app

	root := &cobra.Command{
		Use:           constants.AppName,
		Short:         "Local Ethereum wallet with keychain storage and PIN/biometric gating.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := clientconfig.Load(cfgFile, clientconfig.DefaultPaths())
			if err != nil {
				return errors.Wrap(err, "failed to parse config")
			}
			a, err = openApp(cmd.Context(), cfg)
			return err
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.config/quantum-wallet/config.yaml or ./config.yaml)")

	get := func() *app { return a }
	root.AddCommand(
		statusCmd(get),
		setupPINCmd(get),
		changePINCmd(get),
		createCmd(get),
		importCmd(get),
		restoreCmd(get),
		deleteCmd(get),
		balanceCmd(get),
		gasCmd(get),
		blockCmd(get),
		receiptCmd(get),
		sendCmd(get),
		serveCmd(get),
	)

	closeApp := func() {
		if a != nil {
			a.Close()
			a = nil
		}
	}
	return root, closeApp
}

func statusCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show onboarding, security and wallet state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, ctx := get(), cmd.Context()

			flow, err := a.svc.InitialFlow(ctx)
			if err != nil {
				return err
			}
			state, err := a.svc.SecurityState(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "flow:      %s\n", flow)
			_, _ = fmt.Fprintf(out, "security:  %s\n", state)
			_, _ = fmt.Fprintf(out, "biometric: %s\n", a.svc.BiometricType(ctx))

			addr, err := a.svc.Address(ctx)
			switch {
			case errors.Is(err, wallet.ErrNoWallet):
				_, _ = fmt.Fprintln(out, "wallet:    none")
			case err != nil:
				return err
			default:
				_, _ = fmt.Fprintf(out, "wallet:    %s\n", addr)
			}
			return nil
		},
	}
}

func setupPINCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "setup-pin",
		Short: "Set the 6-digit fallback PIN",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := helpers.PromptNewPIN()
			if err != nil {
				return err
			}
			if err := get().svc.SetupPIN(cmd.Context(), p); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "PIN saved.")
			return nil
		},
	}
}

func changePINCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "change-pin",
		Short: "Replace the PIN after verifying the current one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			oldPIN, err := helpers.PromptPIN("Current PIN: ")
			if err != nil {
				return err
			}
			newPIN, err := helpers.PromptNewPIN()
			if err != nil {
				return err
			}
			if err := get().svc.ChangePIN(cmd.Context(), oldPIN, newPIN); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "PIN changed.")
			return nil
		},
	}
}

func printCreated(cmd *cobra.Command, res *userwallet.CreationResult) {
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Wallet %q ready: %s\n", res.Wallet.Name, res.Wallet.Address)
	if res.Mnemonic != "" {
		_, _ = fmt.Fprintln(out, "\nRecovery phrase (write it down, it is shown only once):")
		_, _ = fmt.Fprintf(out, "  %s\n", res.Mnemonic)
	}
}

func createCmd(get func() *app) *cobra.Command {
	var name string
	var noMnemonic bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Generate a new wallet and store its key in the keychain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, ctx := get(), cmd.Context()

			var res *userwallet.CreationResult
			var err error
			if noMnemonic {
				res, err = a.svc.CreateWallet(ctx, name)
			} else {
				res, err = a.svc.CreateWalletWithMnemonic(ctx, name)
			}
			if err != nil {
				return err
			}
			printCreated(cmd, res)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "Main Wallet", "wallet display name")
	cmd.Flags().BoolVar(&noMnemonic, "no-mnemonic", false, "generate a raw key without a recovery phrase")
	return cmd
}

func importCmd(get func() *app) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a wallet from a 12-word recovery phrase",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			phrase, err := helpers.PromptSecret("Recovery phrase: ")
			if err != nil {
				return err
			}
			defer helpers.ZeroBytes(phrase)

			res, err := get().svc.ImportWalletFromMnemonic(cmd.Context(), name, string(phrase))
			if err != nil {
				return err
			}
			res.Mnemonic = ""
			printCreated(cmd, res)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "Imported Wallet", "wallet display name")
	return cmd
}

func restoreCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "restore",
		Short: "Restore a wallet from a raw private key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			key, err := helpers.PromptSecret("Private key (hex): ")
			if err != nil {
				return err
			}
			defer helpers.ZeroBytes(key)

			res, err := get().svc.RestoreExistingWallet(cmd.Context(), string(key))
			if err != nil {
				return err
			}
			printCreated(cmd, res)
			return nil
		},
	}
}

func deleteCmd(get func() *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete the wallet key, address and PIN from this device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, ctx := get(), cmd.Context()

			if err := a.authorize(ctx, "Delete wallet"); err != nil {
				return err
			}
			if !yes && !helpers.Confirm("This cannot be undone without the recovery phrase. Continue?") {
				return errors.New("aborted")
			}
			if err := a.svc.DeleteWallet(ctx); err != nil {
				return errors.Wrap(err, "wallet only partially deleted")
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Wallet deleted.")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation")
	return cmd
}

func balanceCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "balance [address]",
		Short: "Show the ETH balance of the wallet or the given address",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, ctx := get(), cmd.Context()

			addr := ""
			if len(args) == 1 {
				addr = args[0]
			} else {
				var err error
				if addr, err = a.svc.Address(ctx); err != nil {
					return err
				}
			}

			if err := a.svc.Init(ctx); err != nil {
				return err
			}
			bal, err := a.svc.BalanceOf(ctx, addr)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s ETH\n", bal)
			return nil
		},
	}
}

func gasCmd(get func() *app) *cobra.Command {
	var to, value string

	cmd := &cobra.Command{
		Use:   "gas",
		Short: "Show the gas price, or estimate a transfer with --to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, ctx := get(), cmd.Context()
			out := cmd.OutOrStdout()

			if err := a.svc.Init(ctx); err != nil {
				return err
			}

			if to == "" {
				price, err := a.svc.GasPrice(ctx)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(out, "%s gwei\n", chains.FormatUnits(price, 9, 4))
				return nil
			}

			wei, err := chains.ParseUnits(value, constants.EtherDecimals)
			if err != nil {
				return err
			}
			est, err := a.svc.GasEstimate(ctx, to, wei, nil)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "gas limit: %d\ngas price: %s gwei\nmax fee:   %s ETH\n",
				est.GasLimit,
				chains.FormatUnits(est.GasPrice, 9, 4),
				chains.FormatUnits(est.Fee(), constants.EtherDecimals, 8),
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "recipient address")
	cmd.Flags().StringVar(&value, "value", "0", "amount in ETH")
	return cmd
}

func blockCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "block",
		Short: "Show the latest block number",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, ctx := get(), cmd.Context()
			if err := a.svc.Init(ctx); err != nil {
				return err
			}
			n, err := a.svc.BlockNumber(ctx)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
}

func receiptCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "receipt <tx-hash>",
		Short: "Show a transaction receipt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, ctx := get(), cmd.Context()
			if err := a.svc.Init(ctx); err != nil {
				return err
			}
			r, err := a.svc.Receipt(ctx, args[0])
			if errors.Is(err, chains.ErrReceiptNotFound) {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "pending or unknown")
				return nil
			}
			if err != nil {
				return err
			}

			status := "failed"
			if r.Status == 1 {
				status = "success"
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "status: %s\nblock:  %s\ngas:    %d\n", status, r.BlockNumber, r.GasUsed)
			return nil
		},
	}
}

func sendCmd(get func() *app) *cobra.Command {
	var to, value string

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Sign and broadcast an ETH transfer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, ctx := get(), cmd.Context()

			if strings.TrimSpace(to) == "" {
				return errors.New("--to is required")
			}
			wei, err := chains.ParseUnits(value, constants.EtherDecimals)
			if err != nil {
				return err
			}
			if err := a.authorize(ctx, fmt.Sprintf("Send %s ETH", value)); err != nil {
				return err
			}
			if err := a.svc.Init(ctx); err != nil {
				return err
			}

			hash, err := a.svc.Send(ctx, wallet.SendRequest{To: to, Value: wei})
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "sent: %s\n", hash.Hex())
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "recipient address")
	cmd.Flags().StringVar(&value, "value", "0", "amount in ETH")
	return cmd
}

func serveCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the local read-only HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, ctx := get(), cmd.Context()

			log.Info(constants.AppName,
				"version", Version,
				"commit", Commit,
				"build_date", BuildDate,
			)

			if err := a.svc.Init(ctx); err != nil {
				// Chain routes retry lazily per request.
				log.Warn("starting without chain client", "error", err)
			}

			router := clienthttp.NewRouter(clienthttp.NewHandler(a.svc), a.cfg.Server.AllowedOrigins)
			return clienthttp.Serve(ctx, a.listenAddr(), router)
		},
	}
}
