package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"research-rag/internal/app"
	"research-rag/internal/config"
)

const defaultConfigFile = "./configs/config.yaml"

var configFilePath string

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	root := &cobra.Command{
		Use:   "research-rag",
		Short: "Ask questions about a library of research papers",
	}
	root.PersistentFlags().StringVarP(&configFilePath, "config", "c", getenv("CONFIG_FILE", defaultConfigFile), "config file")

	root.AddCommand(serveCMD(), ingestCMD(), askCMD(), statusCMD(), resetCMD(), exportCMD(), importCMD())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies its log level.
func loadConfig() *config.Config {
	cfg, err := config.Load(configFilePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Warn().Str("level", cfg.Log.Level).Msg("Unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Debug().Interface("config", cfg.Redacted()).Msg("Loaded config")
	return cfg
}

// mustApp builds the application or exits.
func mustApp(ctx context.Context) *app.App {
	a, err := app.New(ctx, loadConfig())
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing application")
	}
	return a
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}
