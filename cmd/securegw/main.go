package main

import (
	"context"
	"net/http"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/Underwood-Inc/strixun-stream-suite-sub009/internal/server"
)

func main() {
	configPath := pflag.String("config", "", "path to yaml config file")
	listen := pflag.String("listen", "", "listen address (overrides config)")
	mongoURI := pflag.String("mongo", "", "MongoDB URI (overrides config)")
	blobDir := pflag.String("blob-dir", "", "directory for the on-disk blob store (overrides config)")
	pflag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	var cfg server.Config
	if *configPath != "" {
		cfg, err = server.LoadConfig(*configPath)
		if err != nil {
			sugar.Fatalw("config load failed", "path", *configPath, "error", err)
		}
	}
	if cfg.IntegrityKeyphrase == "" {
		cfg.IntegrityKeyphrase = os.Getenv("STRIXUN_INTEGRITY_KEYPHRASE")
	}
	if cfg.ServiceKey == "" {
		cfg.ServiceKey = os.Getenv("STRIXUN_SERVICE_KEY")
	}
	if *listen != "" {
		cfg.ListenAddr = *listen
	}
	if *mongoURI != "" {
		cfg.MongoURI = *mongoURI
	}
	if *blobDir != "" {
		cfg.BlobDir = *blobDir
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}

	s, err := server.New(context.Background(), cfg, logger)
	if err != nil {
		sugar.Fatalw("server init failed", "error", err)
	}

	sugar.Infow("gateway listening", "addr", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, s.Handler()); err != nil {
		sugar.Fatalw("server stopped", "error", err)
	}
}
