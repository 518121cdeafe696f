package gateway

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/digkill/prelook/internal/models"
)

// BreakerGateway stops calling a failing model for a cool-down period.
// Empty responses and caller cancellations do not count as failures.
type BreakerGateway struct {
	next Gateway
	cb   *gobreaker.CircuitBreaker
}

type BreakerSettings struct {
	Name                string
	ConsecutiveFailures int
	OpenFor             time.Duration
	OnStateChange       func(name string, from, to gobreaker.State)
}

func NewBreaker(next Gateway, s BreakerSettings, log *slog.Logger) *BreakerGateway {
	if s.ConsecutiveFailures <= 0 {
		s.ConsecutiveFailures = 5
	}
	if s.OpenFor <= 0 {
		s.OpenFor = 60 * time.Second
	}
	settings := gobreaker.Settings{
		Name:        s.Name,
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     s.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(s.ConsecutiveFailures)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNoImage) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if log != nil {
				log.Warn("gateway circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			}
			if s.OnStateChange != nil {
				s.OnStateChange(name, from, to)
			}
		},
	}
	return &BreakerGateway{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

func (b *BreakerGateway) GenerateView(ctx context.Context, src Image, prompt string, angle models.Angle) (*Image, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.GenerateView(ctx, src, prompt, angle)
	})
	if err != nil {
		return nil, err
	}
	img, _ := out.(*Image)
	return img, nil
}

func (b *BreakerGateway) State() gobreaker.State {
	return b.cb.State()
}
