package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"promptd/internal/config"
)

// rootOptions carries persistent flag values and the resolved config shared
// by every subcommand.
type rootOptions struct {
	configPath   string
	modelsDir    string
	logLevel     string
	logFormat    string
	strategy     string
	llamaBin     string
	defaultModel string

	cfg config.Config
}

// NewRootCmd builds the promptd command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&rootOptions{})
}

func newRootCmd(opts *rootOptions) *cobra.Command {
	root := &cobra.Command{
		Use:          "promptd",
		Short:        "Local model lifecycle and inference daemon",
		Long:         `Downloads, converts and runs llama.cpp models on this machine and streams completions.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			_ = godotenv.Load()
			cfg, err := opts.resolve(cmd)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			setupLogging(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "Path to config file (yaml|yml|json|toml)")
	pf.StringVar(&opts.modelsDir, "models-dir", "", "Directory holding downloaded models")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level: trace|debug|info|warn|error")
	pf.StringVar(&opts.logFormat, "log-format", "", "Log output: console|json")
	pf.StringVar(&opts.strategy, "strategy", "", "Inference strategy: server|cli|inprocess")
	pf.StringVar(&opts.llamaBin, "llama-bin", "", "Explicit llama.cpp binary; siblings are derived from it")
	pf.StringVar(&opts.defaultModel, "default-model", "", "Model selected at startup")

	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newModelsCmd(opts))
	root.AddCommand(newPullCmd(opts))
	root.AddCommand(newRmCmd(opts))
	root.AddCommand(newAskCmd(opts))
	root.AddCommand(newDoctorCmd(opts))
	return root
}

// resolve layers defaults, the config file, PROMPTD_* env and flags, in
// that order.
func (o *rootOptions) resolve(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if err := config.ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	set := func(name string, dst *string, v string) {
		if flags.Changed(name) {
			*dst = v
		}
	}
	set("models-dir", &cfg.ModelsDir, o.modelsDir)
	set("log-level", &cfg.LogLevel, o.logLevel)
	set("log-format", &cfg.LogFormat, o.logFormat)
	set("strategy", &cfg.Strategy, o.strategy)
	set("llama-bin", &cfg.LlamaBin, o.llamaBin)
	set("default-model", &cfg.DefaultModel, o.defaultModel)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func setupLogging(w io.Writer, level, format string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	if w == nil {
		w = os.Stderr
	}
	if format == "json" {
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen})
}
