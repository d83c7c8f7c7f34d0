package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"insider-risk/internal/analytics"
	"insider-risk/internal/api"
	"insider-risk/internal/cache"
	"insider-risk/internal/config"
	"insider-risk/internal/dataset"
	"insider-risk/internal/logging"
	"insider-risk/internal/metrics"
	"insider-risk/internal/publish"
	"insider-risk/internal/scorer"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func init() {
	if os.Getenv("RUNNING_IN_DOCKER") == "" {
		if err := godotenv.Load(); err != nil {
			log.Println("No .env file found (this is fine in Docker)")
		}
	}
}

func main() {
	configPath := flag.String("config", os.Getenv("RISK_CONFIG"), "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("service failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	model, err := newModel(cfg)
	if err != nil {
		return err
	}

	recorder := metrics.NewRecorder()
	engine, err := analytics.NewEngine(model, analytics.Options{
		Percentile: cfg.Threshold.Percentile,
		Bands: analytics.BandPolicy{
			CriticalRatio:   cfg.Banding.CriticalRatio,
			SuspiciousRatio: cfg.Banding.SuspiciousRatio,
		},
		ModelTimeout:  cfg.Model.Timeout,
		ModelObserver: recorder,
		Observer:      recorder,
		Logger:        logger.Named("engine"),
	})
	if err != nil {
		return fmt.Errorf("failed to build engine: %w", err)
	}

	source, closeSource, err := newSource(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSource()

	store, err := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.SessionTTL)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer store.Close()

	var publisher api.Publisher = publish.Nop{}
	if cfg.Kafka.Enabled {
		client, err := publish.NewKafkaClient(cfg.Kafka.Brokers)
		if err != nil {
			return err
		}
		defer client.Close()
		publisher = publish.NewKafkaPublisher(client, cfg.Kafka.Topic, logger.Named("kafka"))
	}

	logger.Info("starting insider-risk service",
		zap.String("dataset", cfg.Dataset.Source),
		zap.String("model", cfg.Model.Kind),
		zap.Float64("percentile", engine.Percentile()),
		zap.Bool("kafka", cfg.Kafka.Enabled),
	)

	server := api.NewServer(engine, store, source, publisher, logger.Named("api"))
	return server.Run(cfg.Server.Addr, cfg.Server.ReadTimeout, cfg.Server.WriteTimeout)
}

func newModel(cfg *config.Config) (scorer.Model, error) {
	switch cfg.Model.Kind {
	case "weights":
		m, err := scorer.LoadDenseAutoencoder(cfg.Model.WeightsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load model weights: %w", err)
		}
		return m, nil
	default:
		return scorer.NewHTTPModel(cfg.Model.Endpoint, nil), nil
	}
}

func newSource(ctx context.Context, cfg *config.Config) (dataset.Source, func(), error) {
	switch cfg.Dataset.Source {
	case "postgres":
		pool, err := dataset.ConnectPostgres(ctx, cfg.Dataset.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		return dataset.NewPostgresSource(pool, cfg.Dataset.Table), pool.Close, nil
	default:
		return dataset.NewCSVSource(cfg.Dataset.CSVPath), func() {}, nil
	}
}
