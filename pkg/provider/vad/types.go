package vad

// Event is the detection result for a single audio frame.
type Event struct {
	// Type is the detection result.
	Type EventType

	// LevelDb is the frame's overall energy in dBFS. Zero during calibration.
	LevelDb float64

	// ThresholdDb is the active speaking threshold in dBFS. Zero during
	// calibration.
	ThresholdDb float64
}

// EventType enumerates VAD detection states.
type EventType int

const (
	// EventNone indicates no edge: the speaking/silent state is unchanged.
	EventNone EventType = iota

	// EventCalibrating indicates the frame was consumed by the calibration
	// window; no speech classification was performed.
	EventCalibrating

	// EventSpeechStart indicates speech has just begun.
	EventSpeechStart

	// EventSpeechStop indicates a speech segment has just ended.
	EventSpeechStop
)

// String returns the human-readable name of the event type.
func (t EventType) String() string {
	switch t {
	case EventNone:
		return "NONE"
	case EventCalibrating:
		return "CALIBRATING"
	case EventSpeechStart:
		return "SPEECH_START"
	case EventSpeechStop:
		return "SPEECH_STOP"
	default:
		return "UNKNOWN"
	}
}
