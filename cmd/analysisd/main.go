package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"call-analysis-engine/pkg/accuracy"
	"call-analysis-engine/pkg/config"
	"call-analysis-engine/pkg/engine"
	"call-analysis-engine/pkg/httpapi"
	"call-analysis-engine/pkg/messaging"
	"call-analysis-engine/pkg/metrics"
	"call-analysis-engine/pkg/stt"
)

var logger = logrus.New()

func main() {
	cfg, err := config.Load(logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}
	cfg.ApplyLogging(logger)

	metrics.EnableMetrics(true)
	metrics.Init(logger)

	manager := stt.NewProviderManager(logger, cfg.STT.DefaultProvider)
	if err := manager.RegisterProvider(stt.NewMockProvider(logger)); err != nil {
		logger.WithError(err).Fatal("Failed to register mock transcription provider")
	}
	if cfg.STT.Google.Enabled {
		if err := manager.RegisterProvider(stt.NewGoogleProvider(logger, &cfg.STT)); err != nil {
			logger.WithError(err).Fatal("Failed to register Google transcription provider")
		}
	}
	if cfg.STT.Amazon.Enabled {
		if err := manager.RegisterProvider(stt.NewAmazonProvider(logger, &cfg.STT)); err != nil {
			logger.WithError(err).Fatal("Failed to register Amazon transcription provider")
		}
	}
	adapter := stt.NewAdapter(logger, &cfg.STT, manager)

	var publisher messaging.Publisher = messaging.NoopPublisher{}
	if cfg.Messaging.AMQPURL != "" {
		client := messaging.NewAMQPClient(logger, messaging.AMQPConfig{
			URL:          cfg.Messaging.AMQPURL,
			QueueName:    cfg.Messaging.QueueName,
			ExchangeName: cfg.Messaging.ExchangeName,
			RoutingKey:   cfg.Messaging.RoutingKey,
		})
		if err := client.Connect(); err != nil {
			// Reconnection keeps trying in the background; events are
			// dropped until the broker comes back
			logger.WithError(err).Warn("AMQP connection failed, continuing without broker")
		}
		publisher = client
	} else {
		logger.Info("AMQP_URL not set, event publishing disabled")
	}

	tracker := accuracy.NewTracker(logger)
	orch := engine.NewOrchestrator(logger, cfg, adapter, tracker, publisher)
	orch.Start()

	server := httpapi.NewServer(logger, &cfg.HTTP, orch, tracker)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.WithField("signal", sig.String()).Info("Shutting down")
	case err := <-errCh:
		if err != nil {
			logger.WithError(err).Error("HTTP server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("HTTP server shutdown incomplete")
	}

	orch.Shutdown()

	if client, ok := publisher.(*messaging.AMQPClient); ok {
		client.Disconnect()
	}

	logger.Info("Call analysis engine stopped")
}
