package main

import (
	"embed"
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"caseintake/internal/config"
	"caseintake/internal/logger"
)

//go:embed all:frontend/dist
var assets embed.FS

func main() {
	cfg, err := config.Load()
	if errors.Is(err, config.ErrMissingAPIKey) {
		logrus.Fatal("GEMINI_API_KEY (or API_KEY) must be set")
	}
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		logrus.WithError(err).Fatal("failed to set up logging")
	}
	if cfg.File != "" {
		log.WithField("file", cfg.File).Info("loaded config file")
	}

	app := NewApp(cfg, log)
	err = wails.Run(&options.App{
		Title:  "Laporan Kes",
		Width:  960,
		Height: 760,
		AssetServer: &assetserver.Options{
			Assets: assets,
		},
		OnStartup:  app.startup,
		OnShutdown: app.shutdown,
		Bind: []interface{}{
			app,
		},
	})
	if err != nil {
		log.WithError(err).Fatal("application exited with error")
	}
}
