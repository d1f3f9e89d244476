// Command taxportal is the command-line client for the tax portal backend.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/tax-portal/constants"
	"github.com/joseph-ayodele/tax-portal/internal/common"
	"github.com/joseph-ayodele/tax-portal/internal/session"
	"github.com/joseph-ayodele/tax-portal/internal/transfer"
)

// app carries what every subcommand needs once configuration is loaded.
type app struct {
	cfg    *common.Config
	logger *slog.Logger
	client *transfer.Client
}

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", displayError(err))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "taxportal",
		Short:         "Upload tax documents, track returns and manage your subscription",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}
	root.PersistentFlags().String("api-url", "", "backend base URL (overrides TAXPORTAL_API_URL)")
	root.PersistentFlags().String("token", "", "bearer token (overrides TAXPORTAL_TOKEN)")

	root.AddCommand(
		newUploadCmd(a),
		newExtractionCmd(a),
		newDashboardCmd(a),
		newReturnsCmd(a),
		newPlansCmd(a),
		newServicesCmd(a),
		newSubscribeCmd(a),
		newCancelCmd(a),
		newPaymentsCmd(a),
		newExportCmd(a),
		newWatchCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := common.LoadConfig()
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetString("api-url"); v != "" {
		cfg.APIURL = v
	}
	if v, _ := cmd.Flags().GetString("token"); v != "" {
		cfg.Token = v
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = common.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	slog.SetDefault(a.logger)
	a.client = transfer.NewClient(cfg.APIURL,
		transfer.WithToken(cfg.Token),
		transfer.WithLogger(a.logger),
		transfer.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
	)
	return nil
}

// store opens a session for the configured token and loads its collections.
func (a *app) store(ctx context.Context) (*session.Store, error) {
	if a.cfg.Token == "" {
		return nil, common.NewAppError("CONFIG_ERROR", "TAXPORTAL_TOKEN is required", common.ErrInvalidInput)
	}
	st := session.NewStore(a.client, session.WithLogger(a.logger))
	if err := st.Initialize(ctx, a.cfg.Token, constants.UserType(a.cfg.UserType)); err != nil {
		return nil, err
	}
	return st, nil
}

// displayError prefers the server's message, then validation text, then the error itself.
func displayError(err error) string {
	var te *transfer.Error
	if errors.As(err, &te) {
		return te.Display()
	}
	var ve *common.ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	var ae *common.AppError
	if errors.As(err, &ae) {
		return ae.Message
	}
	return err.Error()
}
