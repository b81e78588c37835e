// Package session wires capture, voice-activity detection, turn taking and
// the interview flow into a single running standup session.
//
// A [Manager] owns the event loop: microphone frames are analysed for voice
// activity and forwarded to the realtime transport, transcripts drive the
// interview engine, and synthesised interviewer audio is played back to the
// participant. Consumers observe progress on the [Manager.Notifications]
// channel and interact through the command methods (ToggleMic, Advance,
// Stop), all of which are safe for concurrent use.
package session

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/standvox/standvox/internal/observe"
	"github.com/standvox/standvox/internal/standup"
	"github.com/standvox/standvox/internal/turn"
	"github.com/standvox/standvox/pkg/audio"
	"github.com/standvox/standvox/pkg/provider/realtime"
	"github.com/standvox/standvox/pkg/provider/vad"
)

// playbackSampleRate is the rate of the PCM16 audio the realtime transport
// emits.
const playbackSampleRate = 24000

// Config assembles the dependencies of a [Manager].
type Config struct {
	// Source opens the microphone capture stream.
	Source audio.Source

	// VAD is the voice-activity detection backend.
	VAD vad.Engine

	// VADConfig parameterises the VAD session. SampleRate must match the
	// frames the Source delivers.
	VADConfig vad.Config

	// Realtime is the speech-to-speech transport provider.
	Realtime realtime.Provider

	// Session configures the realtime session. Instructions is overwritten
	// with the interview opening prompt.
	Session realtime.SessionConfig

	// Roster is the seeded participant list. When empty, the default roster
	// is used.
	Roster []standup.Participant

	// Reconnect enables automatic capture reconnection: when the frame
	// stream ends, the source is reopened with exponential backoff instead
	// of ending the session.
	Reconnect bool

	// Saver persists the finished standup records.
	Saver standup.Saver

	// Metrics defaults to [observe.DefaultMetrics] when nil.
	Metrics *observe.Metrics

	// Logger defaults to [slog.Default] when nil.
	Logger *slog.Logger

	// Now defaults to [time.Now] when nil. Controls the date stamped onto
	// saved records.
	Now func() time.Time
}

func (c *Config) validate() error {
	var errs []error
	if c.Source == nil {
		errs = append(errs, errors.New("session: Source is required"))
	}
	if c.VAD == nil {
		errs = append(errs, errors.New("session: VAD is required"))
	}
	if c.Realtime == nil {
		errs = append(errs, errors.New("session: Realtime is required"))
	}
	if c.Saver == nil {
		errs = append(errs, errors.New("session: Saver is required"))
	}
	return errors.Join(errs...)
}

// command is an instruction delivered to the event loop goroutine.
type command int

const (
	cmdToggleMic command = iota
	cmdAdvance
	cmdStop
)

// Manager runs a single standup interview session end to end.
type Manager struct {
	log     *slog.Logger
	metrics *observe.Metrics

	capture  audio.Capture
	playback audio.Playback // nil when the capture cannot render audio
	vadSess  vad.SessionHandle
	rt       realtime.SessionHandle
	ctrl     *turn.Controller
	engine   *standup.Engine

	// reconn is nil when automatic capture reconnection is disabled.
	reconn     *Reconnector
	recaptured chan audio.Capture

	notifications chan Notification
	commands      chan command
	transportErrs chan error
	captureLost   chan error
	done          chan struct{}

	// Loop-local state, touched only by the run goroutine.
	calibrated   bool
	pending      string
	speechStart  time.Duration
	speechActive bool

	stopOnce sync.Once
	errMu    sync.Mutex
	err      error
}

// rtInstructor defers the instruction sink to the realtime session, which
// does not exist yet when the interview engine is constructed.
type rtInstructor struct{ m *Manager }

func (a rtInstructor) UpdateInstructions(text string) error {
	if a.m.rt == nil {
		return errors.New("session: realtime transport not connected")
	}
	return a.m.rt.UpdateInstructions(text)
}

// loopGate forwards the microphone gate to the manager's current capture,
// which reconnection may replace mid-session. The turn controller is only
// driven from the event loop goroutine, the same goroutine that swaps the
// capture, so no lock is needed.
type loopGate struct{ m *Manager }

func (g loopGate) SetTrackEnabled(enabled bool) error {
	return g.m.capture.SetTrackEnabled(enabled)
}

// Start opens the capture stream, connects the realtime transport and starts
// the event loop. The returned Manager runs until Stop is called, the context
// is cancelled, or the capture stream ends.
func Start(ctx context.Context, cfg Config) (*Manager, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	roster := cfg.Roster
	if len(roster) == 0 {
		roster = standup.SeedRoster(nil)
	}

	m := &Manager{
		log:           cfg.Logger,
		metrics:       cfg.Metrics,
		recaptured:    make(chan audio.Capture, 1),
		notifications: make(chan Notification, 32),
		commands:      make(chan command, 4),
		transportErrs: make(chan error, 4),
		captureLost:   make(chan error, 1),
		done:          make(chan struct{}),
	}

	var capture audio.Capture
	var err error
	if cfg.Reconnect {
		m.reconn = NewReconnector(ReconnectorConfig{
			Source: cfg.Source,
			OnReconnect: func(c audio.Capture) {
				select {
				case m.recaptured <- c:
				case <-m.done:
					_ = c.Stop()
				}
			},
			OnExhausted: func() {
				select {
				case m.captureLost <- errors.New("session: capture lost and reconnection exhausted"):
				default:
				}
			},
		})
		capture, err = m.reconn.Connect(ctx)
	} else {
		capture, err = cfg.Source.Open(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("session: open capture: %w", err)
	}
	m.capture = capture
	m.playback, _ = capture.(audio.Playback)

	vadSess, err := cfg.VAD.NewSession(cfg.VADConfig)
	if err != nil {
		_ = capture.Stop()
		return nil, fmt.Errorf("session: create vad session: %w", err)
	}
	m.vadSess = vadSess

	ctrl, err := turn.NewController(loopGate{m}, turn.WithNotify(m.onTurnChanged))
	if err != nil {
		_ = vadSess.Close()
		_ = capture.Stop()
		return nil, fmt.Errorf("session: init turn controller: %w", err)
	}
	m.ctrl = ctrl

	engineOpts := []standup.EngineOption{
		standup.WithEventSink(m.onFlowEvent),
		standup.WithLogger(cfg.Logger),
	}
	if cfg.Now != nil {
		engineOpts = append(engineOpts, standup.WithClock(cfg.Now))
	}
	m.engine = standup.NewEngine(roster, ctrl, rtInstructor{m}, cfg.Saver, engineOpts...)

	sessCfg := cfg.Session
	sessCfg.Instructions = m.engine.OpeningInstructions()
	rt, err := cfg.Realtime.Connect(ctx, sessCfg)
	if err != nil {
		_ = vadSess.Close()
		_ = capture.Stop()
		return nil, fmt.Errorf("session: connect realtime transport: %w", err)
	}
	m.rt = rt
	rt.OnError(m.onTransportError)

	m.metrics.ActiveSessions.Add(ctx, 1)
	if m.reconn != nil {
		m.reconn.Monitor(ctx)
	}
	go m.run(ctx)
	return m, nil
}

// Notifications returns the channel of session notifications. It is closed
// when the session ends. Notifications are dropped, not blocked on, when the
// consumer falls behind.
func (m *Manager) Notifications() <-chan Notification { return m.notifications }

// Done returns a channel closed when the session has fully shut down.
func (m *Manager) Done() <-chan struct{} { return m.done }

// Err returns the error that ended the session, or nil after a clean stop.
// Valid once Done is closed.
func (m *Manager) Err() error {
	m.errMu.Lock()
	defer m.errMu.Unlock()
	return m.err
}

// Responses exposes the recorded answers, including those of a session that
// failed to persist.
func (m *Manager) Responses() *standup.ResponseStore { return m.engine.Responses() }

// Completed reports whether every participant has answered all questions.
func (m *Manager) Completed() bool { return m.engine.Completed() }

// ToggleMic requests a microphone gate toggle. Illegal toggles surface as
// NoteViolation notifications.
func (m *Manager) ToggleMic() { m.send(cmdToggleMic) }

// Advance requests a manual move to the next participant.
func (m *Manager) Advance() { m.send(cmdAdvance) }

// Stop requests a clean shutdown. It does not wait; use Done.
func (m *Manager) Stop() { m.send(cmdStop) }

func (m *Manager) send(cmd command) {
	select {
	case m.commands <- cmd:
	case <-m.done:
	}
}

// ─── event loop ───────────────────────────────────────────────────────────────

func (m *Manager) run(ctx context.Context) {
	frames := m.capture.Frames()
	transcripts := m.rt.Transcripts()
	rtAudio := m.rt.Audio()

	for {
		select {
		case <-ctx.Done():
			m.shutdown(ctx, ctx.Err())
			return

		case cmd := <-m.commands:
			if cmd == cmdStop {
				m.shutdown(ctx, nil)
				return
			}
			m.handleCommand(ctx, cmd)

		case err := <-m.transportErrs:
			m.handleTransportError(ctx, err)

		case frame, ok := <-frames:
			if !ok {
				if m.reconn == nil {
					m.shutdown(ctx, nil)
					return
				}
				// Stop selecting on the dead stream until the
				// reconnector delivers a replacement.
				frames = nil
				m.reconn.NotifyDisconnect()
				m.emit(Notification{Type: NoteCaptureLost})
				continue
			}
			m.handleFrame(ctx, frame)

		case capture := <-m.recaptured:
			m.capture = capture
			m.playback, _ = capture.(audio.Playback)
			frames = capture.Frames()
			if err := capture.SetTrackEnabled(m.ctrl.MicEnabled()); err != nil {
				m.log.Warn("restoring microphone gate failed", slog.String("error", err.Error()))
			}
			m.emit(Notification{Type: NoteCaptureRestored})

		case err := <-m.captureLost:
			m.shutdown(ctx, err)
			return

		case tx, ok := <-transcripts:
			if !ok {
				m.shutdown(ctx, m.rt.Err())
				return
			}
			m.handleTranscript(ctx, tx)

		case chunk, ok := <-rtAudio:
			if !ok {
				rtAudio = nil
				continue
			}
			m.playChunk(chunk)
		}
	}
}

func (m *Manager) handleCommand(ctx context.Context, cmd command) {
	switch cmd {
	case cmdToggleMic:
		if err := m.ctrl.ToggleMic(); err != nil {
			m.metrics.TurnViolations.Add(ctx, 1)
			m.emit(Notification{Type: NoteViolation, Err: err})
		}
	case cmdAdvance:
		if err := m.engine.AdvanceParticipant(ctx); err != nil {
			m.log.Error("manual participant advance failed", slog.String("error", err.Error()))
		}
	}
}

func (m *Manager) handleFrame(ctx context.Context, frame audio.Frame) {
	ev, err := m.vadSess.ProcessFrame(frame)
	if err != nil {
		m.log.Warn("vad rejected frame", slog.String("error", err.Error()))
		return
	}
	m.metrics.RecordVADFrame(ctx, ev.Type.String())

	if !m.calibrated {
		if _, ok := m.vadSess.Profile(); ok {
			m.calibrated = true
			m.emit(Notification{Type: NoteCalibrated})
		}
	}

	switch ev.Type {
	case vad.EventSpeechStart:
		if m.ctrl.VADStarted() {
			m.speechStart = frame.Timestamp
			m.speechActive = true
			m.emit(Notification{Type: NoteSpeechStart})
		}
	case vad.EventSpeechStop:
		if m.ctrl.VADStopped() {
			if m.speechActive {
				m.metrics.SpeechSegmentDuration.Record(ctx, (frame.Timestamp - m.speechStart).Seconds())
				m.speechActive = false
			}
			m.emit(Notification{Type: NoteSpeechStop})
			m.commitPending(ctx)
		}
	}

	if m.capture.TrackEnabled() {
		if err := m.rt.SendAudio(pcmBytes(frame.PCM)); err != nil {
			m.handleTransportError(ctx, fmt.Errorf("send audio: %w", err))
		}
	}
}

func (m *Manager) handleTranscript(ctx context.Context, tx realtime.Transcript) {
	m.metrics.RecordTranscript(ctx, string(tx.Role))

	switch tx.Role {
	case realtime.RoleUser:
		// Hold the transcript until the trailing-silence window confirms
		// the utterance is over, so a mid-sentence pause does not split an
		// answer across two questions.
		if m.ctrl.State() == turn.UserTurn && m.ctrl.UserSpeaking() {
			if m.pending != "" {
				m.pending += " "
			}
			m.pending += tx.Text
			return
		}
		m.commitUser(ctx, tx.Text)

	case realtime.RoleAssistant:
		m.engine.OnAssistantTranscript(tx.Text)
		if m.ctrl.State() == turn.AITurn {
			if err := m.ctrl.EndAITurn(); err != nil {
				m.log.Warn("hand back to user failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (m *Manager) commitPending(ctx context.Context) {
	if m.pending == "" {
		return
	}
	text := m.pending
	m.pending = ""
	m.commitUser(ctx, text)
}

func (m *Manager) commitUser(ctx context.Context, text string) {
	question := m.engine.QuestionStep()
	if err := m.engine.OnUserTranscript(ctx, text); err != nil {
		m.handleTransportError(ctx, err)
		return
	}
	m.metrics.RecordAnswer(ctx, question.String())
}

func (m *Manager) playChunk(chunk []byte) {
	if m.playback == nil {
		return
	}
	if err := m.playback.Play(pcmSamples(chunk), playbackSampleRate); err != nil {
		m.log.Warn("playback failed", slog.String("error", err.Error()))
	}
}

// handleTransportError gates the microphone off and notifies the consumer.
// The session stays alive so recorded answers remain exportable.
func (m *Manager) handleTransportError(ctx context.Context, err error) {
	m.metrics.TransportErrors.Add(ctx, 1)
	m.log.Error("realtime transport error", slog.String("error", err.Error()))
	if m.ctrl.MicEnabled() {
		if terr := m.ctrl.ToggleMic(); terr != nil {
			m.log.Warn("muting after transport error failed", slog.String("error", terr.Error()))
		}
	}
	m.emit(Notification{Type: NoteTransportError, Err: err})
}

// ─── callbacks from other goroutines ──────────────────────────────────────────

func (m *Manager) onTurnChanged(s turn.State) {
	m.metrics.RecordTurnChange(context.Background(), s.String())
	m.emit(Notification{Type: NoteTurnChanged, Turn: s})
}

func (m *Manager) onFlowEvent(ev standup.Event) {
	note := Notification{Participant: ev.Participant, Question: ev.Question}
	switch ev.Type {
	case standup.EventPhaseChanged:
		note.Type = NotePhaseChanged
	case standup.EventParticipantAdvanced:
		note.Type = NoteParticipantAdvanced
	case standup.EventAdvanceHint:
		note.Type = NoteAdvanceHint
	case standup.EventSessionCompleted:
		note.Type = NoteSessionCompleted
		m.metrics.SessionsCompleted.Add(context.Background(), 1)
	default:
		return
	}
	m.emit(note)
}

func (m *Manager) onTransportError(err error) {
	select {
	case m.transportErrs <- err:
	default:
		m.log.Warn("transport error dropped", slog.String("error", err.Error()))
	}
}

func (m *Manager) emit(note Notification) {
	select {
	case m.notifications <- note:
	default:
		m.log.Warn("notification dropped", slog.String("type", note.Type.String()))
	}
}

func (m *Manager) shutdown(ctx context.Context, cause error) {
	m.stopOnce.Do(func() {
		if err := m.vadSess.Close(); err != nil {
			m.log.Warn("closing vad session failed", slog.String("error", err.Error()))
		}
		if m.reconn != nil {
			if err := m.reconn.Stop(); err != nil {
				m.log.Warn("stopping capture failed", slog.String("error", err.Error()))
			}
		} else if err := m.capture.Stop(); err != nil {
			m.log.Warn("stopping capture failed", slog.String("error", err.Error()))
		}
		if err := m.rt.Close(); err != nil {
			m.log.Warn("closing realtime transport failed", slog.String("error", err.Error()))
		}
		m.engine.Flush(context.WithoutCancel(ctx))
		m.metrics.ActiveSessions.Add(context.WithoutCancel(ctx), -1)

		m.errMu.Lock()
		m.err = cause
		m.errMu.Unlock()

		close(m.notifications)
		close(m.done)
	})
}

// ─── pcm helpers ──────────────────────────────────────────────────────────────

func pcmBytes(pcm []int16) []byte {
	buf := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

func pcmSamples(b []byte) []int16 {
	pcm := make([]int16, len(b)/2)
	for i := range pcm {
		pcm[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return pcm
}
