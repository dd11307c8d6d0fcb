package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	logpkg "india-blood-connect/common/logger"
	"india-blood-connect/common/mqtt"
	commonredis "india-blood-connect/common/redis"
	"india-blood-connect/internal/config"
	"india-blood-connect/internal/consumer"
	"india-blood-connect/internal/notify"
	"india-blood-connect/internal/repository"
	"india-blood-connect/internal/store"
)

func main() {
	cfg := config.Load()

	log, err := logpkg.NewLogger(cfg.Log.Level, cfg.Log.Format, "ibc-alerts")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting ibc-alerts service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	redisClient, err := commonredis.Connect(ctx, &cfg.Redis)
	if err != nil {
		log.Fatal("Failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close()

	repos, db, err := repository.Open(ctx, cfg, redisClient, notify.Nop{}, log)
	if err != nil {
		log.Fatal("Failed to open store", zap.Error(err))
	}
	if db != nil {
		defer db.Close()
	}

	var pub consumer.Publisher
	if cfg.MQTT.Enabled {
		client, err := mqtt.NewClient(&cfg.MQTT.MQTTConfig, log)
		if err != nil {
			log.Fatal("Failed to connect to MQTT broker", zap.Error(err))
		}
		defer client.Disconnect()
		pub = client
		log.Info("Publishing alerts over MQTT", zap.String("broker", cfg.MQTT.Broker), zap.String("topic_prefix", cfg.Alerts.TopicPrefix))
	}

	fanout := consumer.NewAlertFanout(repos, store.NewRedisKV(redisClient), pub, consumer.FanoutOptions{
		TopicPrefix: cfg.Alerts.TopicPrefix,
		CachePrefix: cfg.Alerts.CachePrefix,
		QoS:         cfg.MQTT.QoS,
	}, log)

	var events *consumer.RequestEventConsumer
	if cfg.Alerts.TriggerMode == consumer.TriggerEvents {
		events = consumer.NewRequestEventConsumer(
			redisClient,
			fanout.HandleEvent,
			log,
			cfg.Alerts.EventStream,
			cfg.Alerts.ConsumerGroup,
			cfg.Alerts.ConsumerName,
			int64(cfg.Alerts.BatchSize),
		)
	}
	svc := consumer.NewAlertService(cfg.Alerts.TriggerMode, cfg.Alerts.PollInterval, fanout, events, log)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- svc.Start(ctx)
	}()

	select {
	case sig := <-sigChan:
		log.Info("Received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
		<-errChan
	case err := <-errChan:
		if err != nil {
			log.Error("Service error", zap.Error(err))
		}
		cancel()
	}

	log.Info("Service stopped")
}
