package services

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmitrijs2005/edumate/internal/logging"
	"github.com/dmitrijs2005/edumate/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/edumate/internal/timex"
)

// sweepTimeout bounds one delete so shutdown never waits on a stuck store.
const sweepTimeout = 30 * time.Second

// Sweeper periodically deletes passkeys older than their TTL.
type Sweeper struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	clock       timex.Clock
	interval    time.Duration
	ttl         time.Duration
	log         logging.Logger

	// newTicker is replaced in tests.
	newTicker func(time.Duration) (<-chan time.Time, func())
}

// NewSweeper builds a sweeper that runs every interval and removes passkeys
// older than ttl.
func NewSweeper(db *sql.DB, m repomanager.RepositoryManager, clock timex.Clock,
	interval, ttl time.Duration, log logging.Logger) *Sweeper {
	if clock == nil {
		clock = timex.SystemClock{}
	}
	if log == nil {
		log = logging.Nop{}
	}
	return &Sweeper{
		db:          db,
		repomanager: m,
		clock:       clock,
		interval:    interval,
		ttl:         ttl,
		log:         log.With("component", "passkey_sweeper"),
		newTicker: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		},
	}
}

// Run sweeps immediately and then on every interval until ctx is done.
// Failed sweeps are logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) error {
	s.log.Info(ctx, "passkey sweeper started", "interval", s.interval.String(), "ttl", s.ttl.String())

	tick, stop := s.newTicker(s.interval)
	defer stop()

	for {
		s.SweepOnce(ctx)

		select {
		case <-ctx.Done():
			s.log.Info(context.Background(), "passkey sweeper stopped")
			return nil
		case <-tick:
		}
	}
}

// SweepOnce deletes every passkey created before now-ttl and returns the
// number removed. The delete is detached from ctx cancellation so it is
// never cut off halfway.
func (s *Sweeper) SweepOnce(ctx context.Context) int64 {
	cutoff := s.clock.Now().Add(-s.ttl)

	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sweepTimeout)
	defer cancel()

	n, err := s.repomanager.Passkeys(s.db).DeleteOlderThan(dctx, cutoff)
	if err != nil {
		s.log.Error(ctx, "passkey sweep failed", "error", err)
		return 0
	}
	if n > 0 {
		s.log.Info(ctx, "expired passkeys removed", "count", n)
	} else {
		s.log.Debug(ctx, "no expired passkeys")
	}
	return n
}
