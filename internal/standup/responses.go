package standup

import (
	"strings"
	"sync"
	"time"

	"github.com/standvox/standvox/internal/store"
)

// ResponseStore holds the roster and its recorded answers for one session.
// It is mutated only by [Engine]; all methods are safe for concurrent use.
type ResponseStore struct {
	mu           sync.Mutex
	participants []Participant
}

// NewResponseStore creates a store over a copy of the given roster.
func NewResponseStore(roster []Participant) *ResponseStore {
	ps := make([]Participant, len(roster))
	copy(ps, roster)
	return &ResponseStore{participants: ps}
}

// Record stores text as the named participant's answer to the given
// question, overwriting any earlier answer. Leading and trailing whitespace
// is trimmed. Recording for an unknown participant is a no-op; repeated
// identical calls leave the store unchanged.
func (rs *ResponseStore) Record(participantName string, kind QuestionKind, text string) {
	if kind < 0 || kind >= numQuestions {
		return
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()

	name := lowerName(participantName)
	for i := range rs.participants {
		if lowerName(rs.participants[i].Name) == name {
			rs.participants[i].Responses[kind] = strings.TrimSpace(text)
			return
		}
	}
}

// Participants returns a copy of the roster with its current answers.
func (rs *ResponseStore) Participants() []Participant {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	out := make([]Participant, len(rs.participants))
	copy(out, rs.participants)
	return out
}

// Export produces the persistence payload for the given day: one record per
// participant in roster order. A missing yesterday answer falls back to the
// participant's seeded previous work, so a saved day never loses track of
// what someone was last known to be doing.
func (rs *ResponseStore) Export(day time.Time) []store.DayRecord {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	date := day.Format(store.DateLayout)
	records := make([]store.DayRecord, 0, len(rs.participants))
	for i, p := range rs.participants {
		yesterday := p.Responses[Yesterday]
		if yesterday == "" {
			yesterday = p.PreviousWork
		}
		records = append(records, store.DayRecord{
			No:            i + 1,
			Date:          date,
			Name:          lowerName(p.Name),
			YesterdayWork: yesterday,
			TodayWork:     p.Responses[Today],
			Blockers:      p.Responses[Blockers],
		})
	}
	return records
}
