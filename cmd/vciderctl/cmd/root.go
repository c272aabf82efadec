package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	vcider "github.com/vcider/go-vcider"
	"github.com/vcider/go-vcider/apiclient"
	"github.com/vcider/go-vcider/cmd/vciderctl/config"
	"github.com/vcider/go-vcider/observability"
)

var (
	// Global flags
	cfgFile string
	baseURI string
	apiID   string
	apiKey  string
	verbose bool

	// Shared state set during PersistentPreRun
	cfg *config.Config
)

// rootCmd is the base command for vciderctl.
var rootCmd = &cobra.Command{
	Use:   "vciderctl",
	Short: "vCider CLI — manage nodes, networks, and ports",
	Long: `vciderctl is the command-line interface for the vCider network
management API. It lists and inspects the nodes known to the controller,
creates and modifies virtual networks, and attaches nodes to them.

Credentials are read from ~/.vcider/config.yaml or from flags.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		path := cfgFile
		if path == "" {
			path = config.DefaultPath()
		}
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return errors.Wrap(err, "failed to load config")
		}

		// Flags override the config file.
		if baseURI != "" {
			cfg.BaseURI = baseURI
		}
		if apiID != "" {
			cfg.APIID = apiID
		}
		if apiKey != "" {
			cfg.APIKey = apiKey
		}

		return nil
	},
}

// newClient performs the discovery handshake and returns a ready client.
// It is called per command rather than in PersistentPreRun so that commands
// like help and completion never touch the network.
func newClient(ctx context.Context) (*vcider.Client, error) {
	if cfg.APIID == "" || cfg.APIKey == "" {
		return nil, errors.New("api_id and api_key are required (config file or --api-id/--api-key)")
	}

	var logger observability.Logger
	if verbose {
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
		logger = observability.NewSlogLogger(slog.New(handler))
	}

	return vcider.NewWithConfig(ctx, &vcider.ClientConfig{
		BaseURI:            cfg.BaseURI,
		APIID:              cfg.APIID,
		APIKey:             cfg.APIKey,
		AppID:              cfg.AppID,
		AutoSync:           cfg.AutoSyncEnabled(),
		HashAlgorithm:      apiclient.Algorithm(cfg.HashAlgorithm),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger,
	})
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.vcider/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&baseURI, "base-uri", "", "API base URI")
	rootCmd.PersistentFlags().StringVar(&apiID, "api-id", "", "API ID")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "API key")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging to stderr")
}
