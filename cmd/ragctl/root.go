package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/MokshankSoni-SDP/rag-best-acc/internal/app"
	"github.com/MokshankSoni-SDP/rag-best-acc/internal/config"
	"github.com/MokshankSoni-SDP/rag-best-acc/internal/logging"
)

type rootOptions struct {
	configFile string
	offline    bool
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "ragctl",
		Short:         "Chunk, ingest and query documents",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "YAML config file (overrides RAG_CONFIG_FILE)")
	cmd.PersistentFlags().BoolVar(&opts.offline, "offline", false, "use local hash embeddings, memory index and extractive answers")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level written to stderr")

	cmd.AddCommand(
		newChunkCmd(opts),
		newIngestCmd(opts),
		newSearchCmd(opts),
		newAskCmd(opts),
		newDocumentsCmd(opts),
	)
	return cmd
}

func (o *rootOptions) load() (config.Config, error) {
	_ = godotenv.Load()
	var (
		cfg config.Config
		err error
	)
	if o.configFile != "" {
		cfg, err = config.LoadFile(o.configFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return cfg, err
	}
	if o.offline {
		cfg.Offline()
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (o *rootOptions) logger(stderr io.Writer) *slog.Logger {
	log, _ := logging.New(logging.Options{Level: o.logLevel, Output: stderr})
	return log
}

// build loads config and wires backends. The caller closes the App.
func (o *rootOptions) build(cmd *cobra.Command) (*app.App, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, err
	}
	return app.New(cfg, o.logger(cmd.ErrOrStderr()))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
