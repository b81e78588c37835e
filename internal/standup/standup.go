// Package standup implements the conversational flow of a daily standup
// interview: a fixed three-question script (yesterday, today, blockers)
// asked of each roster participant in turn by a voice interviewer.
//
// The package owns the roster, the current participant/question pointer and
// the recorded answers. Phase advance is driven authoritatively by committed
// user transcripts; interviewer transcripts feed a best-effort keyword
// heuristic that only re-synchronizes the question pointer and hints at
// participant changes, never advances them itself.
package standup

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/standvox/standvox/internal/store"
)

// QuestionKind identifies one of the three standup questions.
type QuestionKind int

const (
	Yesterday QuestionKind = iota
	Today
	Blockers

	numQuestions = 3
)

// String returns the response-slot name of the question.
func (q QuestionKind) String() string {
	switch q {
	case Yesterday:
		return "yesterday"
	case Today:
		return "today"
	case Blockers:
		return "blockers"
	default:
		return "unknown"
	}
}

// QuestionText returns the canonical wording of the question.
func QuestionText(q QuestionKind) string {
	switch q {
	case Yesterday:
		return "What did you work on yesterday?"
	case Today:
		return "What will you work on today?"
	case Blockers:
		return "Do you have any blockers or impediments?"
	default:
		return ""
	}
}

// Participant is one roster member under interview.
type Participant struct {
	// Name is the display name, capitalized.
	Name string

	// PreviousWork seeds the first question: what the participant reported
	// working on in the previous standup.
	PreviousWork string

	// Responses holds the recorded answer per question, indexed by
	// [QuestionKind]. Empty until answered.
	Responses [numQuestions]string
}

// noPreviousData seeds participants for whom no earlier records exist.
const noPreviousData = "No previous data"

// DefaultRoster returns the built-in roster used when no previous day's
// records are available.
func DefaultRoster() []Participant {
	return []Participant{
		{Name: "Jeeva", PreviousWork: noPreviousData},
		{Name: "Ajay", PreviousWork: noPreviousData},
		{Name: "Mithun", PreviousWork: noPreviousData},
	}
}

// SeedRoster builds the session roster from the previous day's records.
// Each participant's previous work is taken from what they planned to do
// that day, falling back to what they had reported doing the day before.
// An empty record set yields [DefaultRoster].
func SeedRoster(records []store.DayRecord) []Participant {
	if len(records) == 0 {
		return DefaultRoster()
	}
	roster := make([]Participant, 0, len(records))
	for _, r := range records {
		prev := r.TodayWork
		if prev == "" {
			prev = r.YesterdayWork
		}
		roster = append(roster, Participant{
			Name:         capitalize(r.Name),
			PreviousWork: prev,
		})
	}
	return roster
}

// RosterFromNames builds the session roster from an explicit name list,
// seeding each participant's previous work from a matching record when one
// exists. Names match case-insensitively. An empty name list falls back to
// [SeedRoster].
func RosterFromNames(names []string, records []store.DayRecord) []Participant {
	if len(names) == 0 {
		return SeedRoster(records)
	}
	byName := make(map[string]store.DayRecord, len(records))
	for _, r := range records {
		byName[lowerName(r.Name)] = r
	}
	roster := make([]Participant, 0, len(names))
	for _, name := range names {
		prev := noPreviousData
		if r, ok := byName[lowerName(name)]; ok {
			if r.TodayWork != "" {
				prev = r.TodayWork
			} else if r.YesterdayWork != "" {
				prev = r.YesterdayWork
			}
		}
		roster = append(roster, Participant{
			Name:         capitalize(lowerName(name)),
			PreviousWork: prev,
		})
	}
	return roster
}

// capitalize upper-cases the first rune of s.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

// lowerName normalizes a participant name for storage and lookup.
func lowerName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
