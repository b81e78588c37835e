// Package openai implements realtime.Provider on OpenAI's Realtime API.
//
// One WebSocket carries the whole session: JSON protocol events in both
// directions, with audio as base64 PCM16 inside them. The session is
// configured for semantic server-side turn detection at low eagerness, so
// the model holds back until the participant has finished an answer, and for
// input transcription with the configured model, which is what surfaces the
// participant's words as completed user transcripts.
package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/standvox/standvox/pkg/provider/realtime"
)

var (
	_ realtime.Provider      = (*Provider)(nil)
	_ realtime.SessionHandle = (*wsSession)(nil)
)

const (
	defaultModel   = "gpt-4o-realtime-preview-2024-12-17"
	defaultBaseURL = "wss://api.openai.com/v1/realtime"
)

// Provider dials Realtime sessions for a fixed API key and model.
type Provider struct {
	apiKey  string
	model   string
	baseURL string
}

// Option configures a [Provider].
type Option func(*Provider)

// WithModel selects the realtime model for new sessions.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithBaseURL points the provider at a different WebSocket endpoint, which
// is how tests substitute a local server.
func WithBaseURL(url string) Option {
	return func(p *Provider) { p.baseURL = url }
}

// New creates a Provider authenticating with apiKey.
func New(apiKey string, opts ...Option) *Provider {
	p := &Provider{
		apiKey:  apiKey,
		model:   defaultModel,
		baseURL: defaultBaseURL,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Connect dials the Realtime endpoint, pushes the initial session
// configuration, and starts the read loop. The handle accepts audio as soon
// as Connect returns.
func (p *Provider) Connect(ctx context.Context, cfg realtime.SessionConfig) (realtime.SessionHandle, error) {
	conn, _, err := websocket.Dial(ctx, p.baseURL+"?model="+p.model, &websocket.DialOptions{
		HTTPHeader: http.Header{
			"Authorization": []string{"Bearer " + p.apiKey},
			"OpenAI-Beta":   []string{"realtime=v1"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("openai: dial: %w", err)
	}

	runCtx, stop := context.WithCancel(context.Background())
	s := &wsSession{
		ws:     conn,
		audio:  make(chan []byte, 64),
		finals: make(chan realtime.Transcript, 16),
		ctx:    runCtx,
		stop:   stop,
	}

	if err := s.configure(cfg); err != nil {
		stop()
		conn.Close(websocket.StatusInternalError, "session update failed")
		return nil, fmt.Errorf("openai: session update: %w", err)
	}
	go s.run()
	return s, nil
}

// Wire format. Field names follow the Realtime API event schema.

type updateEvent struct {
	Type    string        `json:"type"`
	Session updatePayload `json:"session"`
}

type updatePayload struct {
	Voice                   string         `json:"voice,omitempty"`
	Speed                   float64        `json:"speed,omitempty"`
	Instructions            string         `json:"instructions,omitempty"`
	InputAudioFormat        string         `json:"input_audio_format,omitempty"`
	OutputAudioFormat       string         `json:"output_audio_format,omitempty"`
	TurnDetection           *turnDetection `json:"turn_detection,omitempty"`
	InputAudioTranscription *transcription `json:"input_audio_transcription,omitempty"`
}

type turnDetection struct {
	Type              string `json:"type"`
	Eagerness         string `json:"eagerness,omitempty"`
	CreateResponse    bool   `json:"create_response"`
	InterruptResponse bool   `json:"interrupt_response"`
}

type transcription struct {
	Model    string `json:"model"`
	Language string `json:"language,omitempty"`
}

type appendEvent struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

// incoming covers every server event field this client reads. Delta carries
// audio or transcript fragments, Transcript the completed text, Error the
// nested error object of an "error" event.
type incoming struct {
	Type       string `json:"type"`
	Delta      string `json:"delta,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	Error      *struct {
		Type    string `json:"type"`
		Code    string `json:"code,omitempty"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// wsSession is one live Realtime connection. The run goroutine owns the two
// outbound channels and closes them on exit.
type wsSession struct {
	ws     *websocket.Conn
	audio  chan []byte
	finals chan realtime.Transcript

	ctx  context.Context
	stop context.CancelFunc

	mu       sync.Mutex
	onError  func(error)
	firstErr error
	closed   bool

	// partial accumulates assistant transcript deltas until the done event.
	partial string

	chanOnce sync.Once
}

// configure sends the opening session.update: voice, speed, instructions,
// semantic turn detection, and input transcription when a model is set.
func (s *wsSession) configure(cfg realtime.SessionConfig) error {
	payload := updatePayload{
		Voice:             cfg.Voice,
		Speed:             cfg.Speed,
		Instructions:      cfg.Instructions,
		InputAudioFormat:  "pcm16",
		OutputAudioFormat: "pcm16",
		TurnDetection: &turnDetection{
			Type:              "semantic_vad",
			Eagerness:         "low",
			CreateResponse:    true,
			InterruptResponse: false,
		},
	}
	if cfg.TranscriptionModel != "" {
		payload.InputAudioTranscription = &transcription{
			Model:    cfg.TranscriptionModel,
			Language: cfg.TranscriptionLanguage,
		}
	}
	return s.send(updateEvent{Type: "session.update", Session: payload})
}

func (s *wsSession) send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("openai: marshal: %w", err)
	}
	return s.ws.Write(s.ctx, websocket.MessageText, data)
}

// run reads server events until the connection or context ends, then closes
// the audio and transcript channels.
func (s *wsSession) run() {
	defer s.chanOnce.Do(func() {
		close(s.audio)
		close(s.finals)
	})

	for {
		_, data, err := s.ws.Read(s.ctx)
		if err != nil {
			if s.ctx.Err() == nil {
				s.recordErr(err)
			}
			return
		}
		var evt incoming
		if json.Unmarshal(data, &evt) != nil {
			continue
		}
		s.dispatch(evt)
	}
}

func (s *wsSession) dispatch(evt incoming) {
	switch evt.Type {
	case "response.audio.delta":
		chunk, err := base64.StdEncoding.DecodeString(evt.Delta)
		if err != nil || len(chunk) == 0 {
			return
		}
		select {
		case s.audio <- chunk:
		case <-s.ctx.Done():
		}

	case "response.audio_transcript.delta":
		s.mu.Lock()
		s.partial += evt.Delta
		s.mu.Unlock()

	case "response.audio_transcript.done":
		s.mu.Lock()
		text := s.partial
		s.partial = ""
		s.mu.Unlock()
		// Some server versions skip the deltas and put the whole transcript
		// on the done event.
		if text == "" {
			text = evt.Transcript
		}
		if text != "" {
			s.forward(realtime.RoleAssistant, text)
		}

	case "conversation.item.input_audio_transcription.completed":
		if evt.Transcript != "" {
			s.forward(realtime.RoleUser, evt.Transcript)
		}

	case "error":
		s.mu.Lock()
		handler := s.onError
		s.mu.Unlock()
		if handler == nil {
			return
		}
		msg := "unknown error"
		if evt.Error != nil && evt.Error.Message != "" {
			msg = evt.Error.Message
		}
		handler(fmt.Errorf("openai: %s", msg))
	}
}

func (s *wsSession) forward(role realtime.Role, text string) {
	select {
	case s.finals <- realtime.Transcript{Role: role, Text: text, At: time.Now()}:
	case <-s.ctx.Done():
	}
}

func (s *wsSession) recordErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.firstErr == nil {
		s.firstErr = err
	}
}

func (s *wsSession) guardOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("openai: session closed")
	}
	return nil
}

// SendAudio submits one PCM16 chunk to the input audio buffer.
func (s *wsSession) SendAudio(chunk []byte) error {
	if err := s.guardOpen(); err != nil {
		return err
	}
	return s.send(appendEvent{
		Type:  "input_audio_buffer.append",
		Audio: base64.StdEncoding.EncodeToString(chunk),
	})
}

func (s *wsSession) Audio() <-chan []byte { return s.audio }

func (s *wsSession) Transcripts() <-chan realtime.Transcript { return s.finals }

// UpdateInstructions swaps the interviewer prompt mid-session.
func (s *wsSession) UpdateInstructions(instructions string) error {
	if err := s.guardOpen(); err != nil {
		return err
	}
	return s.send(updateEvent{
		Type:    "session.update",
		Session: updatePayload{Instructions: instructions},
	})
}

// OnError registers the callback for non-fatal server error events.
func (s *wsSession) OnError(handler func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onError = handler
}

// Err reports the error that ended the read loop, if any.
func (s *wsSession) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.firstErr
}

// Close tears the connection down. Safe to call more than once.
func (s *wsSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.stop()
	s.ws.Close(websocket.StatusNormalClosure, "session closed")
	return nil
}
