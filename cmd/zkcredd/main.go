package main

import (
	"zkcred/internal/config"
	"zkcred/internal/infra/db"
	httpinfra "zkcred/internal/infra/http"

	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.FromEnv()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.WithField("log_level", cfg.LogLevel).Warn("unknown log level; using info")
	}

	store, err := db.NewStore(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to init store")
	}

	srv := httpinfra.NewServer(cfg, store, log)
	if err := srv.Run(); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}
