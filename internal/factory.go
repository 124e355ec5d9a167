package internal

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/dexsnipe/config"
	"github.com/vadiminshakov/dexsnipe/internal/clients/dexscreener"
	"github.com/vadiminshakov/dexsnipe/internal/clients/jupiter"
	"github.com/vadiminshakov/dexsnipe/internal/clients/signer"
	"github.com/vadiminshakov/dexsnipe/internal/clients/solanarpc"
	"github.com/vadiminshakov/dexsnipe/internal/services/executor"
	"github.com/vadiminshakov/dexsnipe/internal/services/ladder"
	"github.com/vadiminshakov/dexsnipe/internal/services/quote"
	"github.com/vadiminshakov/dexsnipe/internal/services/risk"
	"github.com/vadiminshakov/dexsnipe/internal/services/scanner"
	"github.com/vadiminshakov/dexsnipe/internal/storage/candidates"
	"github.com/vadiminshakov/dexsnipe/internal/storage/journal"
	"github.com/vadiminshakov/dexsnipe/internal/storage/ladders"
	"github.com/vadiminshakov/dexsnipe/internal/storage/settings"
	"github.com/vadiminshakov/dexsnipe/internal/web"
)

// Build wires every component described by conf. The returned cleanup releases
// stores and connections and must be called once the bot has stopped.
func Build(ctx context.Context, logger *zap.Logger, conf config.Config) (*Bot, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	settingsStore, err := settings.NewStore(conf.SettingsPath)
	if err != nil {
		return nil, nil, err
	}

	ladderStore, err := ladders.NewStore(logger, conf.LadderDir)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open ladder store")
	}
	closers = append(closers, func() {
		if err := ladderStore.Close(); err != nil {
			logger.Error("failed to close ladder store", zap.Error(err))
		}
	})

	bot, err := NewBot(logger, settingsStore, ladderStore, conf.Settings)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	// a persisted endpoint from an earlier import takes effect on restart
	rpcClient := solanarpc.NewClient(logger, bot.Settings().Endpoint)
	closers = append(closers, func() { _ = rpcClient.Close() })

	feed := dexscreener.NewClient(logger, conf.DexScreenerURL)
	quotes := quote.NewService(logger, jupiter.NewClient(logger, conf.JupiterURL), rpcClient)

	exec := executor.NewExecutor(logger, risk.NewGate(logger, rpcClient), quotes, rpcClient, rpcClient, bot.TradingParams, nil)
	exec.SetConfirmTimeout(conf.ConfirmTimeout)

	tradeLog, err := journal.NewWALStore(conf.TradeDir)
	if err != nil {
		cleanup()
		return nil, nil, errors.Wrap(err, "open trade journal")
	}
	closers = append(closers, func() {
		if err := tradeLog.Close(); err != nil {
			logger.Error("failed to close trade journal", zap.Error(err))
		}
	})
	exec.SetJournal(tradeLog)
	bot.SetTradeLog(tradeLog)

	if conf.KeypairPath != "" {
		kp, err := signer.LoadKeypair(conf.KeypairPath, rpcClient)
		if err != nil {
			cleanup()
			return nil, nil, errors.Wrap(err, "load keypair")
		}
		exec.SetSigner(kp)
		logger.Info("signer connected", zap.String("wallet", kp.PublicKey().String()))
	} else {
		logger.Warn("no keypair configured, running watch-only")
	}

	engine := ladder.NewEngine(logger, ladderStore, feed, exec, conf.LadderInterval)
	exec.SetEntryRecorder(engine)

	bot.Attach(scanner.NewScanner(logger, feed, bot, bot.Settings), engine, exec)

	if conf.PostgresDSN != "" {
		archive, err := candidates.Open(ctx, logger, conf.PostgresDSN)
		if err != nil {
			cleanup()
			return nil, nil, errors.Wrap(err, "open scan archive")
		}
		closers = append(closers, archive.Close)
		bot.SetArchive(archive)
	}

	if conf.Listen != "" && !conf.Once {
		srv := web.NewServer(logger, conf.Listen, bot, exec.Status())
		if len(conf.TLSDomains) > 0 {
			bot.AddRunner(func(ctx context.Context) error {
				return srv.StartWithAutoTLS(ctx, conf.TLSDomains, conf.CertCacheDir)
			})
		} else {
			bot.AddRunner(srv.Start)
		}
	}

	return bot, cleanup, nil
}
