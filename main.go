package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smc-trading-bot/config"
	"smc-trading-bot/internal/api"
	"smc-trading-bot/internal/bot"
	"smc-trading-bot/internal/cache"
	"smc-trading-bot/internal/circuit"
	"smc-trading-bot/internal/database"
	"smc-trading-bot/internal/events"
	"smc-trading-bot/internal/executor"
	"smc-trading-bot/internal/logging"
	"smc-trading-bot/internal/market"
	"smc-trading-bot/internal/performance"
	"smc-trading-bot/internal/risk"
	"smc-trading-bot/internal/secrets"
	"smc-trading-bot/internal/smc"
	"smc-trading-bot/internal/strategy"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the configuration file")
	generate := flag.Bool("generate-config", false, "write a sample configuration file and exit")
	flag.Parse()

	if *generate {
		if err := config.GenerateSampleConfig(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Sample configuration written to %s\n", *configPath)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LoggingConfig)
	logger.Info().Str("config", *configPath).Msg("Starting SMC trading bot")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.VaultConfig.Enabled {
		vault, err := secrets.NewVaultClient(secrets.Config{
			Address:    cfg.VaultConfig.Address,
			Token:      cfg.VaultConfig.Token,
			MountPath:  cfg.VaultConfig.MountPath,
			SecretPath: cfg.VaultConfig.SecretPath,
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("Vault client init failed")
		}
		creds, err := vault.FetchCredentials(ctx)
		if err != nil {
			logger.Fatal().Err(err).Msg("Vault credential fetch failed")
		}
		cfg.ExchangeConfig.APIKey = creds.APIKey
		cfg.ExchangeConfig.APISecret = creds.APISecret
		logger.Info().Msg("Exchange credentials loaded from Vault")
	}

	var repo *database.Repository
	if cfg.DatabaseConfig.Enabled {
		db, err := database.NewDB(ctx, cfg.DatabaseConfig.DatabaseURL, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("Database connection failed")
		}
		defer db.Close()
		if err := db.RunMigrations(ctx); err != nil {
			logger.Fatal().Err(err).Msg("Migrations failed")
		}
		repo = database.NewRepository(db)
	}

	var klineCache *cache.KlineCache
	if cfg.RedisConfig.Enabled {
		klineCache = cache.NewKlineCache(cache.Config{
			Addr:     cfg.RedisConfig.Addr,
			Password: cfg.RedisConfig.Password,
			DB:       cfg.RedisConfig.DB,
			TTL:      time.Duration(cfg.RedisConfig.KlineTTLSeconds) * time.Second,
		}, logger)
		defer klineCache.Close()
	}

	fetcher := market.NewBybitClient(cfg.ExchangeConfig.BaseURL)

	analyzer := smc.NewAnalyzer(smc.Config{
		SwingLength:        cfg.AnalysisConfig.SwingLength,
		StructureLookback:  cfg.AnalysisConfig.StructureLookback,
		ChochPriority:      cfg.AnalysisConfig.ChochPriority,
		CloseMitigation:    cfg.AnalysisConfig.CloseMitigation,
		FVGJoinConsecutive: cfg.AnalysisConfig.FVGJoinConsecutive,
		LiquidityRange:     cfg.AnalysisConfig.LiquidityRangePct,
		ATRPeriod:          cfg.AnalysisConfig.ATRPeriod,
		ActiveLookback:     cfg.AnalysisConfig.ActiveLookback,
	})

	strategies, err := buildStrategies(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Strategy setup failed")
	}
	manager := strategy.NewManager(logger, strategies...)

	calc := risk.NewCalculator(risk.Config{
		TakeProfitATRMult: cfg.RiskConfig.TakeProfitATRMult,
		StopLossATRMult:   cfg.RiskConfig.StopLossATRMult,
		ZoneBufferATRMult: cfg.RiskConfig.ZoneBufferATRMult,
		RiskPerTradePct:   cfg.RiskConfig.RiskPerTradePct,
	})

	var exec *executor.Executor
	if !cfg.TradingConfig.DryRun {
		exec = executor.New(executor.Config{
			BaseURL:         cfg.ExchangeConfig.BaseURL,
			APIKey:          cfg.ExchangeConfig.APIKey,
			APISecret:       cfg.ExchangeConfig.APISecret,
			BalanceCooldown: time.Duration(cfg.TradingConfig.BalanceCooldownMinutes) * time.Minute,
		}, logger)
	}

	tracker := performance.NewTracker()
	bus := events.NewBus()

	var guard *circuit.Breaker
	if cfg.CircuitConfig.Enabled {
		guard = circuit.NewBreaker(circuit.Config{
			MaxConsecutiveLosses: cfg.CircuitConfig.MaxConsecutiveLosses,
			MaxDailyLossPct:      cfg.CircuitConfig.MaxDailyLossPct,
			MaxDailyTrades:       cfg.CircuitConfig.MaxDailyTrades,
			CooldownMinutes:      cfg.CircuitConfig.CooldownMinutes,
		}, logger)
		guard.OnTrip(func(reason string) {
			bus.Publish(events.Event{
				Type: events.EventError,
				Data: map[string]interface{}{"source": "circuit_breaker", "reason": reason},
			})
		})
	}

	tradingBot := bot.New(bot.Config{
		QuoteCurrency:    cfg.ExchangeConfig.QuoteCurrency,
		MaxSymbols:       cfg.ExchangeConfig.MaxSymbols,
		ExcludeSymbols:   cfg.ExchangeConfig.ExcludeSymbols,
		Interval:         cfg.ExchangeConfig.Interval,
		KlineLimit:       cfg.ExchangeConfig.KlineLimit,
		ScanInterval:     time.Duration(cfg.TradingConfig.ScanIntervalSeconds) * time.Second,
		MaxOpenPositions: cfg.TradingConfig.MaxOpenPositions,
		DryRun:           cfg.TradingConfig.DryRun,
	}, fetcher, klineCache, analyzer, manager, calc, exec, guard, repo, tracker, bus, logger)

	if err := tradingBot.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Bot start failed")
	}

	var stream *market.PriceStream
	if cfg.ExchangeConfig.WebSocketURL != "" {
		stream = market.NewPriceStream(
			cfg.ExchangeConfig.WebSocketURL,
			tradingBot.Symbols(),
			tradingBot.HandlePriceUpdate,
			logger,
		)
		stream.Start()
	}

	var server *api.Server
	if cfg.ServerConfig.Enabled {
		server = api.NewServer(api.Config{
			Port:           cfg.ServerConfig.Port,
			AllowedOrigins: cfg.ServerConfig.AllowedOrigins,
		}, tradingBot, tracker, repo, bus, logger)
		go func() {
			if err := server.Start(); err != nil {
				logger.Error().Err(err).Msg("API server failed")
			}
		}()
	}

	<-ctx.Done()
	logger.Info().Msg("Shutdown signal received")

	if stream != nil {
		stream.Close()
	}
	tradingBot.Stop()
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("API server shutdown failed")
		}
	}
	logger.Info().Msg("Shutdown complete")
}

// buildStrategies instantiates the configured strategies in arbitration
// order.
func buildStrategies(cfg *config.Config) ([]strategy.Strategy, error) {
	var out []strategy.Strategy
	for _, name := range cfg.StrategiesConfig.ActiveStrategies {
		switch name {
		case "order_block":
			out = append(out, strategy.NewOrderBlockStrategy(strategy.OrderBlockConfig{
				RequireStructure:     cfg.StrategiesConfig.OrderBlock.RequireStructure,
				RequireFVGConfluence: cfg.StrategiesConfig.OrderBlock.RequireFVGConfluence,
			}))
		case "liquidity_sweep":
			out = append(out, strategy.NewLiquiditySweepStrategy(strategy.LiquiditySweepConfig{
				RequireVolume: cfg.StrategiesConfig.LiquiditySweep.RequireVolume,
				VolumeFactor:  cfg.StrategiesConfig.LiquiditySweep.VolumeFactor,
				VolumePeriod:  cfg.StrategiesConfig.LiquiditySweep.VolumePeriod,
				MinExcursion:  cfg.StrategiesConfig.LiquiditySweep.MinExcursion,
			}))
		case "silver_bullet":
			sb, err := strategy.NewSilverBulletStrategy(strategy.SilverBulletConfig{
				Sessions: cfg.StrategiesConfig.SilverBullet.Sessions,
				Timezone: cfg.StrategiesConfig.SilverBullet.Timezone,
			})
			if err != nil {
				return nil, fmt.Errorf("silver_bullet: %w", err)
			}
			out = append(out, sb)
		default:
			return nil, fmt.Errorf("unknown strategy %q", name)
		}
	}
	return out, nil
}
