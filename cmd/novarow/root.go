package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tuannm99/novarow/internal"
	"github.com/tuannm99/novarow/internal/catalog"
	"github.com/tuannm99/novarow/internal/codec"
)

var (
	cfgPath     string
	catalogPath string
	logLevel    string
	dataFormat  string

	app *session

	rootCmd = &cobra.Command{
		Use:   "novarow",
		Short: "Encode, decode and inspect rows in the novarow binary format",
		Long: `novarow works on rows described by a schema catalog (YAML).

Values go in and come out as JSON; encoded rows are printed as hex or
base64. Codec settings (compressed ints, schema hash) come from the
config file or NOVAROW_* environment variables.`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (yaml)")
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "schema catalog, overrides the config")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&dataFormat, "format", formatHex, "encoding of row bytes: hex or base64")

	rootCmd.AddCommand(encodeCmd, decodeCmd, inspectCmd, schemasCmd, hashCmd, shellCmd)
}

func setup(cmd *cobra.Command, _ []string) error {
	cfg, err := internal.LoadConfig(cfgPath)
	if err != nil {
		return err
	}
	if catalogPath != "" {
		cfg.Catalog = catalogPath
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := checkFormat(dataFormat); err != nil {
		return err
	}
	opts, err := cfg.CodecOptions()
	if err != nil {
		return err
	}
	cat, err := catalog.Load(cfg.Catalog)
	if err != nil {
		return fmt.Errorf("%s: %w", cfg.Catalog, err)
	}

	app = newSession(cat, codec.NewRegistry(opts...))
	slog.Debug("novarow: ready",
		"catalog", cfg.Catalog,
		"schemas", len(cat.Schemas),
		"compressed", app.reg.Compressed(),
		"schema_hash", app.reg.SchemaHashed(),
	)
	return nil
}
