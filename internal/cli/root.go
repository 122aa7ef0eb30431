// Package cli provides the cobra commands for the chatscan binary.
package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ironsheep/chatscan/internal/config"
	"github.com/ironsheep/chatscan/internal/extract"
	"github.com/ironsheep/chatscan/internal/observability"
	"github.com/ironsheep/chatscan/internal/ocr"
	"github.com/ironsheep/chatscan/internal/output"
)

// BuildInfo is stamped into the binary via ldflags.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildDate string
}

// rootOptions holds the global flags and the state PersistentPreRunE builds
// from them.
type rootOptions struct {
	info BuildInfo

	cfgFile   string
	outputFmt string
	logFormat string
	noHeaders bool
	quiet     bool
	debug     bool

	cfg       *config.Config
	formatter *output.Formatter
}

// Execute runs the CLI
func Execute(info BuildInfo) error {
	return NewRootCommand(info).Execute()
}

// NewRootCommand builds the command tree.
func NewRootCommand(info BuildInfo) *cobra.Command {
	opts := &rootOptions{info: info}

	rootCmd := &cobra.Command{
		Use:   "chatscan",
		Short: "chatscan - extract text from chat screenshots",
		Long: `chatscan turns chat screenshots into clean text plus extracted phones,
emails, URLs and amounts. English and Urdu/Arabic text are normalized.

Get started:
  chatscan extract shot.png      Extract from a screenshot
  chatscan serve                 Run the HTTP API
  chatscan mcp                   Run the MCP server on stdio`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceErrors = opts.quiet
			return opts.init(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "",
		"config file (default is ./chatscan.yaml, ./config/chatscan.yaml or /etc/chatscan/chatscan.yaml)")
	rootCmd.PersistentFlags().StringVarP(&opts.outputFmt, "output", "o", "table",
		"output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "",
		"log format: console or json (default from config)")
	rootCmd.PersistentFlags().BoolVar(&opts.noHeaders, "no-headers", false,
		"hide table headers")
	rootCmd.PersistentFlags().BoolVarP(&opts.quiet, "quiet", "q", false,
		"minimal output")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false,
		"enable debug logging")

	rootCmd.AddCommand(newVersionCmd(opts))
	rootCmd.AddCommand(newExtractCmd(opts))
	rootCmd.AddCommand(newRegionsCmd(opts))
	rootCmd.AddCommand(newNormalizeCmd(opts))
	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newMCPCmd(opts))

	return rootCmd
}

// init loads configuration, configures logging and builds the formatter.
func (o *rootOptions) init(cmd *cobra.Command) error {
	// Logs go to stderr; stdout carries results and the MCP protocol.
	setupLogging(cmd.ErrOrStderr(), "console", zerolog.InfoLevel)

	format, err := output.ParseFormat(o.outputFmt)
	if err != nil {
		return err
	}
	o.formatter = output.NewFormatter(format, o.noHeaders, o.quiet, cmd.OutOrStdout())

	cfg, err := config.Load(o.cfgFile)
	if err != nil {
		return err
	}
	o.cfg = cfg

	logFormat := cfg.Log.Format
	if o.logFormat != "" {
		logFormat = o.logFormat
	}
	level := cfg.Log.ZerologLevel()
	if o.debug {
		level = zerolog.DebugLevel
	}
	if logFormat != "console" && logFormat != "json" {
		return fmt.Errorf("invalid log format: %s (valid: console, json)", logFormat)
	}
	setupLogging(cmd.ErrOrStderr(), logFormat, level)
	return nil
}

func setupLogging(w io.Writer, format string, level zerolog.Level) {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(level)
	if format == "json" {
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
		return
	}
	noColor := true
	if f, ok := w.(*os.File); ok && f == os.Stderr {
		noColor = false
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, NoColor: noColor, TimeFormat: time.Kitchen})
}

// newEngine builds the recognition engine. Tests swap it for a stub.
var newEngine = ocr.New

// pipeline is everything a command needs to run extractions.
type pipeline struct {
	extractor *extract.Extractor
	registry  *prometheus.Registry
	metrics   *observability.Metrics
}

func (o *rootOptions) newPipeline() (*pipeline, error) {
	engine, err := newEngine(o.cfg.EngineConfig())
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	logger := log.Logger
	opts := o.cfg.ExtractOptions()
	opts.Logger = &logger
	opts.Metrics = metrics

	extractor, err := extract.New(engine, opts)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("engine", engine.Name()).
		Strs("languages", opts.Languages).
		Int("workers", opts.Workers).
		Msg("Pipeline ready")

	return &pipeline{extractor: extractor, registry: registry, metrics: metrics}, nil
}
