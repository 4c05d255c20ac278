package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/mcdev12/focustimer/go/internal/config"
)

func loadConfig() (config.Config, error) {
	return config.Load(afero.NewOsFs())
}

func setupLogging(cfg config.LogConfig) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(cfg.ZerologLevel())
}
