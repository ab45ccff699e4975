// Package cli provides the darctl command-line interface.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net/http/httptest"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/aibus/dar-go/internal/config"
	"github.com/aibus/dar-go/internal/darfake"
	"github.com/aibus/dar-go/internal/metrics"
	"github.com/aibus/dar-go/pkg/dar"
)

// demoModel is pre-trained in the fake service.
const demoModel = "demo"

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose    bool
	showStats  bool
	useFake    bool
	envFile    string
	serviceURL string

	cfg        config.Config
	logger     *slog.Logger
	closeLog   func() error
	collector  *metrics.Collector
	fakeServer *httptest.Server
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "darctl",
	Short: "Train, deploy and query Data Attribute Recommendation models",
	Long: `darctl drives the Data Attribute Recommendation service: it trains models
from CSV files, manages deployments, waits on long-running resources and
runs bulk inference.

Credentials are read from the environment (or a .env file):
  DAR_SERVICE_KEY_FILE   service key in JSON or YAML
  DAR_URL, DAR_TOKEN     service URL and a bearer token
  DAR_CLIENT_ID, DAR_CLIENT_SECRET, DAR_AUTH_URL
                         client credentials for the token endpoint`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.LoadDotEnv(envFile); err != nil {
			return err
		}
		cfg = config.Load()
		if serviceURL != "" {
			cfg.URL = serviceURL
		}

		level := cfg.LogLevel
		if verbose {
			level = slog.LevelDebug
		}
		logger, closeLog = config.SetupLogger(cfg.LogFile, level)

		if showStats {
			collector = metrics.NewCollector()
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if showStats && collector != nil {
			printStats(cmd.ErrOrStderr(), collector.Snapshot())
		}
		if fakeServer != nil {
			fakeServer.Close()
			fakeServer = nil
		}
		if closeLog != nil {
			if err := closeLog(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
			}
		}
	},
}

// newSession builds a session from the loaded configuration, or against an
// in-process fake service when --fake is set.
func newSession() (*dar.Session, []dar.ClientOption, error) {
	opts := append(cfg.SessionOptions(), dar.WithLogger(logger))
	if collector != nil {
		opts = append(opts, dar.WithMetrics(collector))
	}

	if useFake {
		fake := darfake.New()
		fake.AddModel(dar.Model{Name: demoModel})
		fakeServer = fake.StartTLS()
		logger.Info("using in-process fake service", "url", fakeServer.URL)
		session, err := dar.NewSession(fakeServer.URL, dar.StaticToken(darfake.Token),
			append(opts, dar.WithHTTPClient(fakeServer.Client()))...)
		if err != nil {
			return nil, nil, err
		}
		fast := dar.WaitConfig{Interval: time.Second, Timeout: time.Minute}
		return session, []dar.ClientOption{
			dar.WithWaitConfig(dar.KindDataset, fast),
			dar.WithWaitConfig(dar.KindJob, fast),
			dar.WithWaitConfig(dar.KindDeployment, fast),
		}, nil
	}

	tokens, err := cfg.TokenSource()
	if err != nil {
		return nil, nil, err
	}
	if cfg.URL == "" {
		return nil, nil, fmt.Errorf("no service URL: set DAR_URL or pass --url")
	}
	session, err := dar.NewSession(cfg.URL, tokens, opts...)
	if err != nil {
		return nil, nil, err
	}
	return session, cfg.ClientOptions(), nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// An interrupt cancels the running command's context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&showStats, "stats", false, "print request timings on exit")
	rootCmd.PersistentFlags().BoolVar(&useFake, "fake", false, "run against an in-process fake service")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load")
	rootCmd.PersistentFlags().StringVar(&serviceURL, "url", "", "service URL (overrides DAR_URL)")

	rootCmd.AddCommand(waitCmd)
	rootCmd.AddCommand(inferCmd)
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(undeployCmd)
	rootCmd.AddCommand(trainCmd)
}
