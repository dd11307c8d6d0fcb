package consumer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	TriggerPolling = "polling"
	TriggerEvents  = "events"
)

// AlertService drives an AlertFanout either on a fixed tick or on request
// events read from the stream.
type AlertService struct {
	mode     string
	interval time.Duration
	fanout   *AlertFanout
	events   *RequestEventConsumer
	logger   *zap.Logger
}

// NewAlertService events is required only for TriggerEvents.
func NewAlertService(mode string, interval time.Duration, fanout *AlertFanout, events *RequestEventConsumer, logger *zap.Logger) *AlertService {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &AlertService{mode: mode, interval: interval, fanout: fanout, events: events, logger: logger}
}

// Start blocks until ctx is done.
func (s *AlertService) Start(ctx context.Context) error {
	s.logger.Info("Starting alert fan-out", zap.String("trigger_mode", s.mode))

	switch s.mode {
	case TriggerPolling:
		return s.startPolling(ctx)
	case TriggerEvents:
		if s.events == nil {
			return fmt.Errorf("trigger mode %q needs an event consumer", s.mode)
		}
		s.runOnce(ctx, "startup")
		return s.events.Start(ctx)
	default:
		return fmt.Errorf("unsupported trigger mode: %s", s.mode)
	}
}

func (s *AlertService) startPolling(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce(ctx, "startup")
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.runOnce(ctx, "tick")
		}
	}
}

func (s *AlertService) runOnce(ctx context.Context, trigger string) {
	if _, err := s.fanout.Run(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("Alert fan-out failed", zap.String("trigger", trigger), zap.Error(err))
	}
}
