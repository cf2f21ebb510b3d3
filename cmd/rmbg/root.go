package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ironsheep/rmbg-local/internal/config"
	"github.com/ironsheep/rmbg-local/internal/engine"
	"github.com/ironsheep/rmbg-local/internal/pipeline"
	"github.com/ironsheep/rmbg-local/internal/session"
)

var (
	// cfg is resolved in PersistentPreRunE: environment first, then flags.
	cfg    config.Config
	logger *slog.Logger

	flagCacheDir  string
	flagORTLib    string
	flagResampler string
	flagFilter    string
	flagLogLevel  string
)

var rootCmd = &cobra.Command{
	Use:   "rmbg",
	Short: "Remove image backgrounds locally with a segmentation model",
	Long: `rmbg cuts the subject out of an image and makes the background transparent.
Everything runs on this machine; only the model weights are downloaded, once.

Environment variables (overridden by flags):
  RMBG_LOG_LEVEL, RMBG_CACHE_DIR, RMBG_ORT_LIBRARY,
  RMBG_RESAMPLER, RMBG_FILTER, RMBG_DEFAULT_MODEL`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.FromEnv()
		flags := cmd.Flags()
		if flags.Changed("cache-dir") {
			cfg.CacheDir = flagCacheDir
		}
		if flags.Changed("ort-lib") {
			cfg.ORTLibrary = flagORTLib
		}
		if flags.Changed("resampler") {
			cfg.Resampler = flagResampler
		}
		if flags.Changed("filter") {
			cfg.Filter = flagFilter
		}
		if flags.Changed("log-level") {
			cfg.LogLevel = flagLogLevel
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		// stdout is reserved for results and the MCP protocol.
		logger = cfg.NewLogger(os.Stderr)
		slog.SetDefault(logger)
		logger.Debug("configuration resolved",
			"version", Version,
			"cache_dir", cfg.WeightCacheDir(),
			"resampler", cfg.Resampler,
			"filter", cfg.Filter)
		return nil
	},
}

// Execute runs the root command with a context cancelled by Ctrl+C or SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(fmt.Sprintf("rmbg {{.Version}} (built %s, commit %s)\n", BuildTime, GitCommit))

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagCacheDir, "cache-dir", "", `directory for downloaded model weights ("off" disables the cache)`)
	pf.StringVar(&flagORTLib, "ort-lib", "", "path to the onnxruntime shared library")
	pf.StringVar(&flagResampler, "resampler", "", "resampling backend: imaging, bild, xdraw or nfnt")
	pf.StringVar(&flagFilter, "filter", "", "resampling filter: linear, catmullrom or lanczos")
	pf.StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn or error")
}

// newPipeline builds the ONNX-backed pipeline from cfg. The caller closes
// the returned session.
func newPipeline() (*pipeline.Pipeline, *session.Session, error) {
	rs, err := cfg.NewResampler()
	if err != nil {
		return nil, nil, err
	}
	fetcher := engine.NewFetcher(cfg.WeightCacheDir(), logger)
	loader := engine.NewONNXLoader(fetcher, cfg.ORTLibrary, logger)
	sess := session.New(loader, logger)
	return pipeline.New(sess, rs, logger), sess, nil
}

func closeSession(sess *session.Session) {
	if err := sess.Close(); err != nil {
		logger.Warn("failed to release model", "error", err)
	}
}
