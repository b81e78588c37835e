package session

import (
	"github.com/standvox/standvox/internal/standup"
	"github.com/standvox/standvox/internal/turn"
)

// NotificationType identifies a session notification.
type NotificationType int

const (
	// NoteTurnChanged fires whenever the turn controller changes state.
	NoteTurnChanged NotificationType = iota

	// NoteCalibrated fires once, when ambient-noise calibration completes.
	NoteCalibrated

	// NoteSpeechStart fires when voice activity begins during the user's turn.
	NoteSpeechStart

	// NoteSpeechStop fires when a speech segment ends.
	NoteSpeechStop

	// NotePhaseChanged fires when the interview moves to a new question.
	NotePhaseChanged

	// NoteParticipantAdvanced fires when the interview moves to the next
	// team member.
	NoteParticipantAdvanced

	// NoteAdvanceHint fires when the interviewer's speech sounds like a
	// hand-over but the flow has not advanced yet.
	NoteAdvanceHint

	// NoteSessionCompleted fires once, when every participant has answered
	// all questions and the records were handed to the store.
	NoteSessionCompleted

	// NoteViolation fires when an operation was rejected because it is not
	// legal in the current turn state.
	NoteViolation

	// NoteTransportError fires when the realtime transport reports an error.
	// The session keeps running with the microphone gated off.
	NoteTransportError

	// NoteCaptureLost fires when the capture stream ends unexpectedly and
	// automatic reconnection begins.
	NoteCaptureLost

	// NoteCaptureRestored fires when a lost capture stream has been reopened.
	NoteCaptureRestored
)

// String returns the notification type name.
func (t NotificationType) String() string {
	switch t {
	case NoteTurnChanged:
		return "TURN_CHANGED"
	case NoteCalibrated:
		return "CALIBRATED"
	case NoteSpeechStart:
		return "SPEECH_START"
	case NoteSpeechStop:
		return "SPEECH_STOP"
	case NotePhaseChanged:
		return "PHASE_CHANGED"
	case NoteParticipantAdvanced:
		return "PARTICIPANT_ADVANCED"
	case NoteAdvanceHint:
		return "ADVANCE_HINT"
	case NoteSessionCompleted:
		return "SESSION_COMPLETED"
	case NoteViolation:
		return "VIOLATION"
	case NoteTransportError:
		return "TRANSPORT_ERROR"
	case NoteCaptureLost:
		return "CAPTURE_LOST"
	case NoteCaptureRestored:
		return "CAPTURE_RESTORED"
	default:
		return "UNKNOWN"
	}
}

// Notification is a single event emitted on [Manager.Notifications]. Only the
// fields relevant to the Type are populated.
type Notification struct {
	Type NotificationType

	// Turn is set for NoteTurnChanged.
	Turn turn.State

	// Participant is set for flow notifications that concern a team member.
	Participant string

	// Question is set for NotePhaseChanged.
	Question standup.QuestionKind

	// Err carries the underlying error for NoteViolation and
	// NoteTransportError.
	Err error
}
