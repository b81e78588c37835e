package store

import (
	"context"
	"time"

	"github.com/standvox/standvox/internal/resilience"
)

// Failover is a [Store] backed by a primary and one or more fallback stores.
// Each backend carries its own circuit breaker, so a repeatedly failing
// primary (typically PostgreSQL) is bypassed in favour of the next healthy
// backend (typically the local day-file tree) until its breaker resets.
//
// Writes go to the first healthy backend only; backends are not kept in sync.
type Failover struct {
	group *resilience.FallbackGroup[Store]
}

// NewFailover creates a failover store with primary as the preferred backend.
func NewFailover(primary Store, name string, cfg resilience.FallbackConfig) *Failover {
	return &Failover{group: resilience.NewFallbackGroup(primary, name, cfg)}
}

// AddFallback registers an additional backend, tried after the primary.
func (f *Failover) AddFallback(name string, s Store) {
	f.group.AddFallback(name, s)
}

func (f *Failover) SaveDay(ctx context.Context, day time.Time, records []DayRecord) error {
	return f.group.Execute(func(s Store) error {
		return s.SaveDay(ctx, day, records)
	})
}

func (f *Failover) LoadDay(ctx context.Context, day time.Time) ([]DayRecord, error) {
	return resilience.ExecuteWithResult(f.group, func(s Store) ([]DayRecord, error) {
		return s.LoadDay(ctx, day)
	})
}

func (f *Failover) LoadPrevious(ctx context.Context, day time.Time) ([]DayRecord, error) {
	return resilience.ExecuteWithResult(f.group, func(s Store) ([]DayRecord, error) {
		return s.LoadPrevious(ctx, day)
	})
}

var _ Store = (*Failover)(nil)
