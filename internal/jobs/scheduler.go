package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/digkill/prelook/internal/metrics"
)

// BookingSweeper completes bookings whose date has passed.
type BookingSweeper interface {
	CompletePast(ctx context.Context, now time.Time) (int64, error)
}

type Scheduler struct {
	cron     *cron.Cron
	bookings BookingSweeper
	spec     string
	log      *slog.Logger
	now      func() time.Time
}

// NewScheduler takes a six-field cron spec (seconds first).
func NewScheduler(bookings BookingSweeper, spec string, log *slog.Logger) *Scheduler {
	if spec == "" {
		spec = "0 0 * * * *"
	}
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		bookings: bookings,
		spec:     spec,
		log:      log,
		now:      time.Now,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.sweepBookings); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop waits for a running sweep to finish, up to ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.log.Warn("scheduler stop timed out")
	}
}

func (s *Scheduler) sweepBookings() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	n, err := s.bookings.CompletePast(ctx, s.now())
	if err != nil {
		s.log.Error("complete past bookings failed", "err", err)
		return
	}
	if n > 0 {
		metrics.BookingsCompleted(n)
		s.log.Info("bookings completed", "count", n)
	}
}
