// Command dexsnipe scans new Solana DEX pairs, ranks them and trades them with
// take-profit ladders.
//
// Usage:
//
//	dexsnipe --config config.yaml
//	dexsnipe --once            print one ranked candidate table and exit
//	dexsnipe setup             run the configuration wizard
//
// Environment overrides: SOLANA_RPC_ENDPOINT, DEXSNIPE_KEYPAIR, POSTGRES_DSN.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/vadiminshakov/dexsnipe/config"
	"github.com/vadiminshakov/dexsnipe/internal"
	"github.com/vadiminshakov/dexsnipe/internal/console"
	"github.com/vadiminshakov/dexsnipe/internal/setup"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "setup" {
		path, err := setup.RunTUI()
		if err != nil {
			log.Fatal(err)
		}
		os.Args = []string{os.Args[0], "--config", path}
	}

	conf, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := newLogger(conf.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bot, cleanup, err := internal.Build(ctx, logger, conf)
	if err != nil {
		logger.Fatal("failed to build bot", zap.Error(err))
	}
	defer cleanup()

	if conf.Once {
		list, err := bot.ScanOnce(ctx)
		if err != nil {
			logger.Error("scan failed", zap.Error(err))
			return
		}
		if err := console.RenderCandidates(os.Stdout, list, time.Now()); err != nil {
			logger.Error("failed to render candidates", zap.Error(err))
		}
		return
	}

	if err := bot.Run(ctx); err != nil {
		logger.Error("bot stopped with error", zap.Error(err))
		return
	}
	logger.Info("bot stopped")
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
