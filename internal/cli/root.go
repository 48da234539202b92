// Package cli implements the paymentsheet command: test-mode confirmations,
// a merchant backend server and microdeposit verification.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mark3labs/paymentsheet-go/stripeapi"
)

const version = "0.1.0-dev"

// app is the state shared by all commands once flags and environment are loaded.
type app struct {
	v        *viper.Viper
	logger   *slog.Logger
	reporter *reporter
}

// Execute runs the root command. This is called by main.main().
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "paymentsheet",
		Short: "Confirm payments and run a merchant backend from the command line",
		Long: `paymentsheet drives payment sheet confirmations against the payments API.

Settings come from flags, PAYMENTSHEET_* environment variables, a .env file
in the working directory, or a configuration file passed with --config.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.reporter != nil {
				a.reporter.Flush()
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "configuration file path")
	flags.Bool("debug", false, "enable debug logging")
	flags.String("publishable-key", "", "publishable API key (PAYMENTSHEET_PUBLISHABLE_KEY)")
	flags.String("api-base-url", stripeapi.DefaultBaseURL, "payments API base URL")
	flags.String("sentry-dsn", "", "report failures to Sentry (SENTRY_DSN)")

	rootCmd.AddCommand(newConfirmCmd(a), newServeCmd(a), newVerifyMicrodepositsCmd(a))
	return rootCmd
}

// init loads .env, binds flags and environment, and sets up logging and
// error reporting.
func (a *app) init(cmd *cobra.Command) error {
	// A missing .env file is fine
	_ = godotenv.Load()

	v := a.v
	v.SetEnvPrefix("PAYMENTSHEET")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("sentry-dsn", "PAYMENTSHEET_SENTRY_DSN", "SENTRY_DSN"); err != nil {
		return err
	}
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	a.logger = newLogger(cmd.ErrOrStderr(), v.GetBool("debug"))
	slog.SetDefault(a.logger)

	r, err := newReporter(v.GetString("sentry-dsn"), v.GetBool("debug"))
	if err != nil {
		return fmt.Errorf("failed to initialize error reporting: %w", err)
	}
	a.reporter = r
	return nil
}

func newLogger(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// paymentsClient builds the payments API client from the shared settings.
func (a *app) paymentsClient() (*stripeapi.Client, error) {
	key := a.v.GetString("publishable-key")
	if key == "" {
		return nil, fmt.Errorf("publishable key is required (--publishable-key or PAYMENTSHEET_PUBLISHABLE_KEY)")
	}
	return stripeapi.NewClient(key,
		stripeapi.WithBaseURL(a.v.GetString("api-base-url")),
		stripeapi.WithLogger(a.logger),
	)
}
