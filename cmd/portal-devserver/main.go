// Command portal-devserver runs a local stand-in for the tax portal backend.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/tax-portal/constants"
	"github.com/joseph-ayodele/tax-portal/internal/common"
	"github.com/joseph-ayodele/tax-portal/internal/devserver"
	"github.com/joseph-ayodele/tax-portal/internal/entity"
	"github.com/joseph-ayodele/tax-portal/internal/repository"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := &cobra.Command{
		Use:           "portal-devserver",
		Short:         "Local tax portal backend with sqlite storage and fake extraction",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newTokenCmd(), newCheckCmd())
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadConfig() (*common.Config, *slog.Logger, error) {
	cfg, err := common.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.ValidateServer(); err != nil {
		return nil, nil, err
	}
	logger := common.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func openDB(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*sql.DB, error) {
	db, err := repository.Open(ctx, repository.Config{DSN: cfg.DevServerDSN, DialTimeout: 3 * time.Second}, logger)
	if err != nil {
		logger.Error("failed to open database", "dsn", cfg.DevServerDSN, "error", err)
		return nil, err
	}
	if err := repository.HealthCheck(ctx, db, 5*time.Second, logger); err != nil {
		repository.Close(db, logger)
		return nil, err
	}
	return db, nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the portal API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := openDB(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer repository.Close(db, logger)

			srv := devserver.New(db, devserver.Config{
				Addr:                 cfg.DevServerAddr,
				JWTSecret:            cfg.JWTSecret,
				UploadDir:            cfg.UploadDir,
				ExtractionDelayPolls: cfg.ExtractionDelayPolls,
			}, logger)
			return srv.Run(cmd.Context())
		},
	}
}

func newTokenCmd() *cobra.Command {
	var (
		email    string
		userType string
		ttl      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a bearer token for an account, creating the account if needed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			ut := constants.UserType(userType)
			switch ut {
			case constants.UserIndividual, constants.UserBusiness, constants.UserCPA:
			default:
				return fmt.Errorf("unknown user type %q", userType)
			}
			db, err := openDB(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer repository.Close(db, logger)

			acct, err := findOrCreate(cmd.Context(), repository.NewAccountRepository(db, logger), email, ut)
			if err != nil {
				return err
			}
			tok, err := devserver.IssueToken(cfg.JWTSecret, *acct, ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&userType, "type", string(constants.UserIndividual), "account type (individual, business, cpa)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func findOrCreate(ctx context.Context, accounts repository.AccountRepository, email string, ut constants.UserType) (*entity.AccountSummary, error) {
	acct, err := accounts.GetByEmail(ctx, email)
	if err == nil {
		return acct, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}
	return accounts.Create(ctx, repository.NewAccount{Email: email, UserType: ut})
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Ping the database and list client accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := openDB(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("DB health: FAIL (%w)", err)
			}
			defer repository.Close(db, logger)

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "DB health: OK")
			clients, err := repository.NewAccountRepository(db, logger).ListClients(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing clients: %w", err)
			}
			fmt.Fprintf(out, "client accounts: %d\n", len(clients))
			for _, c := range clients {
				fmt.Fprintf(out, "- [%d] %s (%s)\n", c.ID, c.Email, c.UserType)
			}
			return nil
		},
	}
}
