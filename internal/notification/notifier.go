// Package notification delivers signals to external channels (Telegram,
// webhooks, Kafka) and adapts them to the monitor's sink interface.
package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"hama-scanner/internal/logger"
	"hama-scanner/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert is a channel-neutral notification.
type Alert struct {
	Level   AlertLevel    `json:"level"`
	Title   string        `json:"title"`
	Message string        `json:"message"`
	Signal  *model.Signal `json:"signal,omitempty"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// AlertFromSignal renders a signal as an alert.
func AlertFromSignal(sig model.Signal) Alert {
	arrow := "▲"
	if sig.Direction == model.DirectionDown {
		arrow = "▼"
	}
	return Alert{
		Level: AlertInfo,
		Title: fmt.Sprintf("%s %s %s (%s)", arrow, sig.Symbol, sig.Direction, sig.MarketType),
		Message: fmt.Sprintf("%s\nprice %.8g at %s",
			sig.Description, sig.Price, sig.Timestamp.UTC().Format(time.RFC3339)),
		Signal: &sig,
	}
}

// AlertSink adapts a Notifier to model.SignalSink.
type AlertSink struct {
	name string
	n    Notifier
}

// NewAlertSink wraps n under the given sink name.
func NewAlertSink(name string, n Notifier) *AlertSink {
	return &AlertSink{name: name, n: n}
}

func (s *AlertSink) Name() string { return s.name }

func (s *AlertSink) Notify(ctx context.Context, sig model.Signal) error {
	return s.n.Send(ctx, AlertFromSignal(sig))
}

// LogNotifier writes alerts to the structured log (useful for development).
type LogNotifier struct {
	log zerolog.Logger
}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{log: logger.Component("notify")}
}

func (n *LogNotifier) Send(_ context.Context, alert Alert) error {
	ev := n.log.Info()
	switch alert.Level {
	case AlertWarning:
		ev = n.log.Warn()
	case AlertCritical:
		ev = n.log.Error()
	}
	if alert.Signal != nil {
		ev = ev.Str("signal_id", alert.Signal.ID).Str("symbol", alert.Signal.Symbol)
	}
	ev.Str("title", alert.Title).Msg(alert.Message)
	return nil
}
