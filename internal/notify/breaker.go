package notify

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/metrics"
)

// ErrCircuitOpen is returned without calling the wrapped notifier while the breaker is open.
var ErrCircuitOpen = errors.New("notifier circuit open")

type BreakerConfig struct {
	Name             string
	FailureThreshold uint32
	Timeout          time.Duration
	MaxRequests      uint32
}

// BreakerNotifier stops calling a failing notifier for a while, so a broker outage costs
// one fast error per notification instead of a timeout.
type BreakerNotifier struct {
	next appointment.Notifier
	cb   *gobreaker.CircuitBreaker[any]
}

func NewBreakerNotifier(next appointment.Notifier, cfg BreakerConfig, logger zerolog.Logger) *BreakerNotifier {
	if cfg.Name == "" {
		cfg.Name = "notifier"
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("notifier circuit breaker state changed")
			metrics.ObserveBreakerState(name, to.String())
		},
	}

	return &BreakerNotifier{
		next: next,
		cb:   gobreaker.NewCircuitBreaker[any](settings),
	}
}

func (b *BreakerNotifier) Notify(ctx context.Context, n appointment.Notification) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, b.next.Notify(ctx, n)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}

func (b *BreakerNotifier) State() string {
	return b.cb.State().String()
}
