package notification

import (
	"fmt"
	"time"
)

// Type represents the kind of notification
type Type string

const (
	NotifyHedge  Type = "hedge"
	NotifyDrift  Type = "drift"
	NotifyRegime Type = "regime"
	NotifyError  Type = "error"
	NotifyInfo   Type = "info"
)

// Notification represents a notification message
type Notification struct {
	Type      Type
	Title     string
	Message   string
	Symbol    string
	Timestamp time.Time
	Extra     map[string]interface{}
}

// Notifier is implemented by delivery providers (webhook, chat, console).
type Notifier interface {
	Send(notification *Notification) error
	Name() string
	IsEnabled() bool
}

// Manager fans notifications out to all enabled providers. Delivery is
// fire-and-forget from the core's perspective; a failing provider never
// blocks the others.
type Manager struct {
	notifiers []Notifier
	enabled   bool
}

// NewManager creates a new notification manager
func NewManager() *Manager {
	return &Manager{enabled: true}
}

// AddNotifier adds a notification provider
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Send sends a notification to all enabled providers
func (m *Manager) Send(notification *Notification) error {
	if m == nil || !m.enabled {
		return nil
	}
	if notification.Timestamp.IsZero() {
		notification.Timestamp = time.Now()
	}

	var lastErr error
	for _, n := range m.notifiers {
		if n.IsEnabled() {
			if err := n.Send(notification); err != nil {
				lastErr = err
			}
		}
	}
	return lastErr
}

// SendError reports an error with its originating context.
func (m *Manager) SendError(err error, context string) error {
	return m.Send(&Notification{
		Type:    NotifyError,
		Title:   fmt.Sprintf("Error: %s", context),
		Message: err.Error(),
		Extra:   map[string]interface{}{"context": context},
	})
}

// SendHedgeExecuted reports a completed hedge rebalance.
func (m *Manager) SendHedgeExecuted(symbol, side string, quantity, price, deviation float64) error {
	return m.Send(&Notification{
		Type:    NotifyHedge,
		Title:   fmt.Sprintf("Hedge rebalanced: %s", symbol),
		Message: fmt.Sprintf("%s %.6f %s @ %.2f (delta deviation %.2f)", side, quantity, symbol, price, deviation),
		Symbol:  symbol,
		Extra: map[string]interface{}{
			"side":      side,
			"quantity":  quantity,
			"price":     price,
			"deviation": deviation,
		},
	})
}

// SendDriftAlert reports a strategy drift detection.
func (m *Manager) SendDriftAlert(symbol string, zScore float64, severity string) error {
	return m.Send(&Notification{
		Type:    NotifyDrift,
		Title:   fmt.Sprintf("Strategy drift detected: %s", symbol),
		Message: fmt.Sprintf("Recent returns diverged from baseline (z=%.2f, severity=%s)", zScore, severity),
		Symbol:  symbol,
		Extra: map[string]interface{}{
			"z_score":  zScore,
			"severity": severity,
		},
	})
}

// SendRegimeWarning reports an extreme-volatility regime reading.
func (m *Manager) SendRegimeWarning(symbol, regime string, volatilityScore float64) error {
	return m.Send(&Notification{
		Type:    NotifyRegime,
		Title:   fmt.Sprintf("Market regime warning: %s", symbol),
		Message: fmt.Sprintf("Regime %q with volatility score %.2f", regime, volatilityScore),
		Symbol:  symbol,
		Extra: map[string]interface{}{
			"regime":           regime,
			"volatility_score": volatilityScore,
		},
	})
}
