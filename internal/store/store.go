// Package store persists completed standup interviews as per-day record
// sets and loads the previous day's records to seed a new session.
//
// Two backends exist: a day-partitioned JSON file tree under
// [github.com/standvox/standvox/internal/store/dayfile] and a PostgreSQL
// table under [github.com/standvox/standvox/internal/store/postgres].
package store

import (
	"context"
	"time"
)

// DateLayout is the display date written into [DayRecord.Date].
const DateLayout = "02/01/2006"

// DayRecord is one participant's answers for one standup day.
type DayRecord struct {
	// No is the participant's 1-based position in the roster.
	No int `json:"no"`

	// Date is the standup date in [DateLayout] form.
	Date string `json:"date"`

	// Name is the participant's name, stored lower-cased.
	Name string `json:"name"`

	YesterdayWork string `json:"yesterday_work"`
	TodayWork     string `json:"today_work"`
	Blockers      string `json:"blockers"`
}

// Store reads and writes per-day standup record sets.
//
// Loads for a day with no saved records return an empty slice and a nil
// error; absence of data is not a failure.
type Store interface {
	// SaveDay replaces the record set for the given day.
	SaveDay(ctx context.Context, day time.Time, records []DayRecord) error

	// LoadDay returns the record set saved for the given day.
	LoadDay(ctx context.Context, day time.Time) ([]DayRecord, error)

	// LoadPrevious returns the record set for the day before the given day,
	// used to seed a new session's roster with previous work.
	LoadPrevious(ctx context.Context, day time.Time) ([]DayRecord, error)
}
