package standup

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/standvox/standvox/internal/store"
)

// TurnStarter hands the speaking turn to the interviewer. Satisfied by
// [github.com/standvox/standvox/internal/turn.Controller].
type TurnStarter interface {
	BeginAITurn() error
}

// Instructor delivers updated instructions to the voice interviewer.
// Satisfied by the realtime session handle.
type Instructor interface {
	UpdateInstructions(instructions string) error
}

// Saver persists the exported day records when the session completes.
type Saver interface {
	SaveDay(ctx context.Context, day time.Time, records []store.DayRecord) error
}

// EventType identifies a flow notification emitted by [Engine].
type EventType int

const (
	// EventPhaseChanged fires when the question pointer moves, whether by a
	// committed answer or by heuristic re-synchronization.
	EventPhaseChanged EventType = iota

	// EventParticipantAdvanced fires when the interview moves to the next
	// roster participant.
	EventParticipantAdvanced

	// EventSessionCompleted fires once, when the final participant's final
	// answer is committed. Terminal.
	EventSessionCompleted

	// EventAdvanceHint fires when an interviewer transcript sounds like a
	// hand-over to the next participant. Advisory only: the engine never
	// advances on it, because committed answers already advance the pointer
	// and acting on both double-advances.
	EventAdvanceHint
)

// Event is a flow notification for UI binding and observability.
type Event struct {
	Type        EventType
	Participant string
	Question    QuestionKind
}

// EngineOption is a functional option for [NewEngine].
type EngineOption func(*Engine)

// WithEventSink registers a callback for flow notifications. The callback
// runs synchronously on the engine's calling goroutine.
func WithEventSink(fn func(Event)) EngineOption {
	return func(e *Engine) { e.onEvent = fn }
}

// WithClock overrides the time source used to date exported records.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the engine's logger. Defaults to [slog.Default].
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) { e.log = l }
}

// Engine is the standup flow state machine. It owns the participant and
// question pointers and the [ResponseStore]; collaborators are reached only
// through the narrow interfaces above. All methods are safe for concurrent
// use.
type Engine struct {
	mu        sync.Mutex
	roster    []Participant
	responses *ResponseStore
	turns     TurnStarter
	instruct  Instructor
	saver     Saver
	onEvent   func(Event)
	now       func() time.Time
	log       *slog.Logger

	participantIndex int
	questionStep     QuestionKind
	answered         bool
	completed        bool
	saved            bool
}

// NewEngine creates an engine over the given roster. The session begins at
// the first participant's first question.
func NewEngine(roster []Participant, turns TurnStarter, instruct Instructor, saver Saver, opts ...EngineOption) *Engine {
	e := &Engine{
		roster:    roster,
		responses: NewResponseStore(roster),
		turns:     turns,
		instruct:  instruct,
		saver:     saver,
		now:       time.Now,
		log:       slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Responses exposes the engine's answer store, for example to re-export
// records after a failed save.
func (e *Engine) Responses() *ResponseStore { return e.responses }

// OpeningInstructions returns the interviewer instructions for the start of
// the session.
func (e *Engine) OpeningInstructions() string {
	return OpeningPrompt(e.roster)
}

// Completed reports whether the interview has finished the whole roster.
func (e *Engine) Completed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.completed
}

// QuestionStep returns the question currently being asked.
func (e *Engine) QuestionStep() QuestionKind {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.questionStep
}

// CurrentParticipant returns the participant under interview. ok is false
// once the session has completed.
func (e *Engine) CurrentParticipant() (Participant, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.completed || e.participantIndex >= len(e.roster) {
		return Participant{}, false
	}
	return e.roster[e.participantIndex], true
}

// OnUserTranscript commits a completed user utterance as the answer to the
// current question and advances the flow: to the next question of the same
// participant, or to the next participant after the third answer. This is
// the authoritative phase-advance path.
//
// After every commit short of session completion the interviewer receives
// fresh instructions and the speaking turn.
func (e *Engine) OnUserTranscript(ctx context.Context, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.completed || e.participantIndex >= len(e.roster) {
		return nil
	}

	current := e.roster[e.participantIndex]
	e.responses.Record(current.Name, e.questionStep, text)
	e.answered = true
	e.questionStep++

	if e.questionStep >= numQuestions {
		return e.advanceLocked(ctx)
	}

	e.emit(Event{Type: EventPhaseChanged, Participant: current.Name, Question: e.questionStep})
	if err := e.instruct.UpdateInstructions(nextQuestionPrompt(current.Name, e.questionStep)); err != nil {
		return fmt.Errorf("standup: update instructions: %w", err)
	}
	if err := e.turns.BeginAITurn(); err != nil {
		return fmt.Errorf("standup: begin interviewer turn: %w", err)
	}
	return nil
}

// AdvanceParticipant moves the interview to the next roster participant,
// resetting the question pointer. When the roster is exhausted the session
// becomes completed (terminal) and the exported records are saved exactly
// once.
func (e *Engine) AdvanceParticipant(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.advanceLocked(ctx)
}

func (e *Engine) advanceLocked(ctx context.Context) error {
	if e.completed {
		return nil
	}

	e.participantIndex++
	e.questionStep = Yesterday

	if e.participantIndex >= len(e.roster) {
		e.completed = true
		e.persistLocked(ctx)
		e.emit(Event{Type: EventSessionCompleted})
		return nil
	}

	next := e.roster[e.participantIndex]
	e.emit(Event{Type: EventParticipantAdvanced, Participant: next.Name, Question: Yesterday})
	if err := e.instruct.UpdateInstructions(nextParticipantPrompt(next)); err != nil {
		return fmt.Errorf("standup: update instructions: %w", err)
	}
	if err := e.turns.BeginAITurn(); err != nil {
		return fmt.Errorf("standup: begin interviewer turn: %w", err)
	}
	return nil
}

// Flush persists the answers of a session that ends before the roster is
// finished, so a stopped interview keeps what was already said. A session
// with nothing recorded saves nothing, and a completed session, which saved
// on completion, does not save again.
func (e *Engine) Flush(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.answered {
		return
	}
	e.persistLocked(ctx)
}

// persistLocked saves the exported records. A failed save is logged rather
// than returned: the in-memory answers remain valid and a caller can export
// and retry independently.
func (e *Engine) persistLocked(ctx context.Context) {
	if e.saved || e.saver == nil {
		return
	}
	e.saved = true
	day := e.now()
	if err := e.saver.SaveDay(ctx, day, e.responses.Export(day)); err != nil {
		e.log.Error("saving standup records failed; answers remain exportable",
			"error", err, "participants", len(e.roster))
	}
}

// OnAssistantTranscript feeds an interviewer transcript to the keyword
// heuristic. Topic keywords re-synchronize the question pointer to whatever
// the interviewer is actually asking; hand-over keywords emit only an
// [EventAdvanceHint]. Keyword-free text is a no-op, never an error.
func (e *Engine) OnAssistantTranscript(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.completed {
		return
	}

	q, phaseOK, advance := inferPhase(text)
	switch {
	case phaseOK:
		if q != e.questionStep {
			e.questionStep = q
			name := ""
			if e.participantIndex < len(e.roster) {
				name = e.roster[e.participantIndex].Name
			}
			e.emit(Event{Type: EventPhaseChanged, Participant: name, Question: q})
		}
	case advance:
		e.emit(Event{Type: EventAdvanceHint})
	}
}

func (e *Engine) emit(ev Event) {
	if e.onEvent != nil {
		e.onEvent(ev)
	}
}
