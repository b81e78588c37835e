package standup

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// fuzzyKeywordThreshold is the minimum Jaro-Winkler similarity for a
// transcript token to count as a keyword hit. Speech-to-text output drifts
// on word endings ("blocker" vs "blockers", "impediment" vs "impediments"),
// so exact matching alone misses real hits.
const fuzzyKeywordThreshold = 0.92

// Keyword sets per topic, checked in the same priority order the questions
// are asked in reverse specificity: today, blockers, then yesterday. The
// hand-over set signals the interviewer thanked the participant and is
// moving on.
var (
	todayPhrases   = []string{"work on today", "today's plan"}
	todayTokens    = []string{"today"}
	blockerTokens  = []string{"blocker", "blockers", "impediment", "impediments"}
	yesterPhrases  = []string{"working on"}
	yesterTokens   = []string{"yesterday", "progress", "issues"}
	advancePhrases = []string{"thank you", "move on", "next member"}
	advanceTokens  = []string{"next", "continue"}
)

// inferPhase inspects an interviewer transcript and reports which question
// it appears to be asking, or whether it appears to be handing over to the
// next participant.
//
// This is a best-effort heuristic over inherently unreliable input: it keeps
// a display pointer roughly synchronized with the spoken conversation and is
// never authoritative. Keyword-free or ambiguous transcripts report neither.
func inferPhase(transcript string) (q QuestionKind, phaseOK bool, advance bool) {
	text := strings.ToLower(transcript)
	tokens := tokenize(text)

	switch {
	case containsAny(text, todayPhrases) || matchesAny(tokens, todayTokens):
		return Today, true, false
	case matchesAny(tokens, blockerTokens):
		return Blockers, true, false
	case containsAny(text, yesterPhrases) || matchesAny(tokens, yesterTokens):
		return Yesterday, true, false
	case containsAny(text, advancePhrases) || matchesAny(tokens, advanceTokens):
		return 0, false, true
	default:
		return 0, false, false
	}
}

// tokenize splits lower-cased text into words, stripping punctuation.
func tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9' || r == '\'')
	})
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// matchesAny reports whether any token fuzzily matches any keyword.
func matchesAny(tokens, keywords []string) bool {
	for _, t := range tokens {
		for _, k := range keywords {
			if t == k {
				return true
			}
			if matchr.JaroWinkler(t, k, false) >= fuzzyKeywordThreshold {
				return true
			}
		}
	}
	return false
}
