package energy

import (
	"math"
	"testing"
	"time"

	"github.com/standvox/standvox/pkg/audio"
	"github.com/standvox/standvox/pkg/provider/vad"
)

const (
	testRate      = 48000
	testFrameSize = 2400 // 50ms at 48kHz; 20 frames/sec polling
)

// ── helpers ──────────────────────────────────────────────────────────────────

// sineFrame builds a frame containing a pure tone.
func sineFrame(freqHz float64, amplitude float64, ts time.Duration) audio.Frame {
	pcm := make([]int16, testFrameSize)
	for i := range pcm {
		pcm[i] = int16(amplitude * math.Sin(2*math.Pi*freqHz*float64(i)/testRate))
	}
	return audio.Frame{PCM: pcm, SampleRate: testRate, Timestamp: ts}
}

// quietFrame builds an ambient-noise frame with ±1 dither (about -90 dBFS).
func quietFrame(ts time.Duration) audio.Frame {
	pcm := make([]int16, testFrameSize)
	for i := range pcm {
		if i%2 == 0 {
			pcm[i] = 1
		} else {
			pcm[i] = -1
		}
	}
	return audio.Frame{PCM: pcm, SampleRate: testRate, Timestamp: ts}
}

// voiceFrame builds a frame that classifies as voiced: a 1 kHz tone at about
// -30 dBFS (in-band energy, mid-range zero-crossing rate).
func voiceFrame(ts time.Duration) audio.Frame {
	// RMS of A*sin is A/sqrt(2); A = 1465 gives roughly -30 dBFS.
	return sineFrame(1000, 1465, ts)
}

// calibratedSession runs a session through its full calibration window.
func calibratedSession(t *testing.T, cfg vad.Config) vad.SessionHandle {
	t.Helper()
	sess, err := New().NewSession(cfg)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	for i := 0; i < cfg.CalibrationFrames; i++ {
		ev, err := sess.ProcessFrame(quietFrame(time.Duration(i) * 50 * time.Millisecond))
		if err != nil {
			t.Fatalf("calibration frame %d: %v", i, err)
		}
		if ev.Type != vad.EventCalibrating {
			t.Fatalf("calibration frame %d: event = %v; want CALIBRATING", i, ev.Type)
		}
	}
	return sess
}

func defaultTestConfig() vad.Config {
	return vad.Config{
		SampleRate:        testRate,
		CalibrationFrames: 60,
		MarginDb:          12,
		FloorDb:           -50,
		Hold:              1800 * time.Millisecond,
	}
}

// ── Construction ─────────────────────────────────────────────────────────────

func TestNewSession_Validation(t *testing.T) {
	t.Parallel()

	eng := New()

	if _, err := eng.NewSession(vad.Config{SampleRate: 0}); err == nil {
		t.Error("zero sample rate: want error, got nil")
	}
	if _, err := eng.NewSession(vad.Config{SampleRate: testRate, Hold: -time.Second}); err == nil {
		t.Error("negative hold: want error, got nil")
	}
	if _, err := eng.NewSession(vad.Config{SampleRate: testRate}); err != nil {
		t.Errorf("defaults: unexpected error: %v", err)
	}
}

func TestProcessFrame_WrongSampleRate(t *testing.T) {
	t.Parallel()

	sess, err := New().NewSession(defaultTestConfig())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if _, err := sess.ProcessFrame(audio.Frame{PCM: make([]int16, 320), SampleRate: 16000}); err == nil {
		t.Error("mismatched sample rate: want error, got nil")
	}
}

func TestProcessFrame_AfterClose(t *testing.T) {
	t.Parallel()

	sess, _ := New().NewSession(defaultTestConfig())
	if err := sess.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := sess.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if _, err := sess.ProcessFrame(quietFrame(0)); err == nil {
		t.Error("closed session: want error, got nil")
	}
}

// ── Calibration ──────────────────────────────────────────────────────────────

func TestCalibration_ProfileFromQuietWindow(t *testing.T) {
	t.Parallel()

	cfg := defaultTestConfig()
	sess := calibratedSession(t, cfg)

	profile, ok := sess.Profile()
	if !ok {
		t.Fatal("Profile: calibration not complete after full window")
	}

	// ±1 dither is 20*log10(1/32768) ≈ -90.3 dBFS.
	if profile.AmbientNoiseDb > -85 || profile.AmbientNoiseDb < -95 {
		t.Errorf("AmbientNoiseDb = %.1f; want about -90", profile.AmbientNoiseDb)
	}
	// Ambient+12 is far below the floor, so the floor wins.
	if profile.SpeakingThresholdDb != cfg.FloorDb {
		t.Errorf("SpeakingThresholdDb = %.1f; want floor %.1f", profile.SpeakingThresholdDb, cfg.FloorDb)
	}
}

func TestCalibration_NoSpeechEventsDuringWindow(t *testing.T) {
	t.Parallel()

	sess, err := New().NewSession(defaultTestConfig())
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	// Even a loud voiced frame inside the calibration window must be
	// consumed silently.
	for i := 0; i < 30; i++ {
		ev, err := sess.ProcessFrame(voiceFrame(time.Duration(i) * 50 * time.Millisecond))
		if err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if ev.Type != vad.EventCalibrating {
			t.Fatalf("frame %d: event = %v; want CALIBRATING", i, ev.Type)
		}
	}
	if _, ok := sess.Profile(); ok {
		t.Error("Profile reports calibrated before window complete")
	}
}

func TestCalibration_NoisyRoomRaisesThreshold(t *testing.T) {
	t.Parallel()

	cfg := defaultTestConfig()
	cfg.CalibrationFrames = 10
	sess, err := New().NewSession(cfg)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	// A -40 dBFS ambient hum: threshold becomes -40+12 = -28, above the floor.
	for i := 0; i < cfg.CalibrationFrames; i++ {
		// RMS of A*sin is A/sqrt(2); A = 463 gives roughly -40 dBFS.
		if _, err := sess.ProcessFrame(sineFrame(1000, 463, time.Duration(i)*50*time.Millisecond)); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}

	profile, ok := sess.Profile()
	if !ok {
		t.Fatal("not calibrated")
	}
	if profile.SpeakingThresholdDb <= cfg.FloorDb {
		t.Errorf("SpeakingThresholdDb = %.1f; want above floor %.1f", profile.SpeakingThresholdDb, cfg.FloorDb)
	}
	if math.Abs(profile.SpeakingThresholdDb-(profile.AmbientNoiseDb+cfg.MarginDb)) > 0.01 {
		t.Errorf("threshold %.2f is not ambient %.2f + margin %.0f",
			profile.SpeakingThresholdDb, profile.AmbientNoiseDb, cfg.MarginDb)
	}
}

// ── Classification ───────────────────────────────────────────────────────────

func TestSpeechStart_VoicedFrameAfterCalibration(t *testing.T) {
	t.Parallel()

	sess := calibratedSession(t, defaultTestConfig())

	ev, err := sess.ProcessFrame(voiceFrame(3 * time.Second))
	if err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}
	if ev.Type != vad.EventSpeechStart {
		t.Fatalf("event = %v; want SPEECH_START", ev.Type)
	}
	if ev.LevelDb > -28 || ev.LevelDb < -32 {
		t.Errorf("LevelDb = %.1f; want about -30", ev.LevelDb)
	}
	if ev.ThresholdDb != -50 {
		t.Errorf("ThresholdDb = %.1f; want -50", ev.ThresholdDb)
	}
}

func TestNoStart_QuietFrame(t *testing.T) {
	t.Parallel()

	sess := calibratedSession(t, defaultTestConfig())
	ev, err := sess.ProcessFrame(quietFrame(3 * time.Second))
	if err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}
	if ev.Type != vad.EventNone {
		t.Errorf("event = %v; want NONE", ev.Type)
	}
}

func TestNoStart_LoudOutOfBandRumble(t *testing.T) {
	t.Parallel()

	sess := calibratedSession(t, defaultTestConfig())

	// 60 Hz hum at -20 dBFS: loud, but out of the voice band and with a
	// near-zero crossing rate.
	ev, err := sess.ProcessFrame(sineFrame(60, 4634, 3*time.Second))
	if err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}
	if ev.Type != vad.EventNone {
		t.Errorf("event = %v; want NONE for out-of-band energy", ev.Type)
	}
}

func TestNoStart_BroadbandNoiseZCR(t *testing.T) {
	t.Parallel()

	sess := calibratedSession(t, defaultTestConfig())

	// Full-rate alternating samples: crossing rate 1.0, far above the voiced
	// band.
	pcm := make([]int16, testFrameSize)
	for i := range pcm {
		if i%2 == 0 {
			pcm[i] = 4000
		} else {
			pcm[i] = -4000
		}
	}
	ev, err := sess.ProcessFrame(audio.Frame{PCM: pcm, SampleRate: testRate, Timestamp: 3 * time.Second})
	if err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}
	if ev.Type != vad.EventNone {
		t.Errorf("event = %v; want NONE for broadband noise", ev.Type)
	}
}

// ── Hysteresis stop detection ────────────────────────────────────────────────

func TestSpeechStop_AfterHoldWindow(t *testing.T) {
	t.Parallel()

	cfg := defaultTestConfig()
	sess := calibratedSession(t, cfg)

	base := 3 * time.Second
	if ev, _ := sess.ProcessFrame(voiceFrame(base)); ev.Type != vad.EventSpeechStart {
		t.Fatalf("event = %v; want SPEECH_START", ev.Type)
	}

	// Silence within the hold window: no stop yet.
	ev, err := sess.ProcessFrame(quietFrame(base + cfg.Hold/2))
	if err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}
	if ev.Type != vad.EventNone {
		t.Fatalf("mid-hold event = %v; want NONE", ev.Type)
	}

	// Silence past the hold window: stop fires.
	ev, err = sess.ProcessFrame(quietFrame(base + cfg.Hold + 100*time.Millisecond))
	if err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}
	if ev.Type != vad.EventSpeechStop {
		t.Fatalf("post-hold event = %v; want SPEECH_STOP", ev.Type)
	}
}

func TestSpeechStop_VoicedFrameRestartsHold(t *testing.T) {
	t.Parallel()

	cfg := defaultTestConfig()
	sess := calibratedSession(t, cfg)

	base := 3 * time.Second
	sess.ProcessFrame(voiceFrame(base))

	// Voiced again just before the window expires: window restarts.
	mid := base + cfg.Hold - 100*time.Millisecond
	if ev, _ := sess.ProcessFrame(voiceFrame(mid)); ev.Type != vad.EventNone {
		t.Fatalf("continuing speech event = %v; want NONE", ev.Type)
	}

	// A stop relative to the original start time would fire here, but the
	// restart pushed it out.
	ev, _ := sess.ProcessFrame(quietFrame(base + cfg.Hold + 200*time.Millisecond))
	if ev.Type != vad.EventNone {
		t.Fatalf("event = %v; want NONE (hold restarted)", ev.Type)
	}

	ev, _ = sess.ProcessFrame(quietFrame(mid + cfg.Hold + 100*time.Millisecond))
	if ev.Type != vad.EventSpeechStop {
		t.Fatalf("event = %v; want SPEECH_STOP after restarted hold", ev.Type)
	}
}

func TestStartStopStart_Cycle(t *testing.T) {
	t.Parallel()

	cfg := defaultTestConfig()
	sess := calibratedSession(t, cfg)

	base := 3 * time.Second
	if ev, _ := sess.ProcessFrame(voiceFrame(base)); ev.Type != vad.EventSpeechStart {
		t.Fatal("first start missing")
	}
	if ev, _ := sess.ProcessFrame(quietFrame(base + cfg.Hold + time.Millisecond)); ev.Type != vad.EventSpeechStop {
		t.Fatal("stop missing")
	}
	if ev, _ := sess.ProcessFrame(voiceFrame(base + 2*cfg.Hold)); ev.Type != vad.EventSpeechStart {
		t.Fatal("second start missing")
	}
}

// ── Reset ────────────────────────────────────────────────────────────────────

func TestReset_RestartsCalibration(t *testing.T) {
	t.Parallel()

	sess := calibratedSession(t, defaultTestConfig())
	sess.Reset()

	if _, ok := sess.Profile(); ok {
		t.Error("Profile reports calibrated after Reset")
	}
	ev, err := sess.ProcessFrame(voiceFrame(10 * time.Second))
	if err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}
	if ev.Type != vad.EventCalibrating {
		t.Errorf("event = %v; want CALIBRATING after Reset", ev.Type)
	}
}

// ── Feature functions ────────────────────────────────────────────────────────

func TestZeroCrossingRate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		pcm  []int16
		want float64
	}{
		{"empty", nil, 0},
		{"constant", []int16{5, 5, 5, 5}, 0},
		{"alternating", []int16{1, -1, 1, -1}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := zeroCrossingRate(tt.pcm); got != tt.want {
				t.Errorf("zeroCrossingRate = %v; want %v", got, tt.want)
			}
		})
	}
}

func TestOverallDb_Silence(t *testing.T) {
	t.Parallel()

	if got := overallDb(make([]int16, 100)); got != silenceDb {
		t.Errorf("overallDb(zeros) = %v; want %v", got, silenceDb)
	}
	if got := overallDb(nil); got != silenceDb {
		t.Errorf("overallDb(nil) = %v; want %v", got, silenceDb)
	}
}

func TestVoiceBandDb_PureToneMatchesOverall(t *testing.T) {
	t.Parallel()

	frame := sineFrame(1000, 8000, 0)
	overall := overallDb(frame.PCM)
	band := voiceBandDb(frame.PCM, testRate)
	if math.Abs(overall-band) > 1.0 {
		t.Errorf("in-band tone: overall %.2f dB vs band %.2f dB; want within 1 dB", overall, band)
	}
}

func TestVoiceBandDb_OutOfBandToneFallsAway(t *testing.T) {
	t.Parallel()

	frame := sineFrame(8000, 8000, 0) // well above the voice band
	overall := overallDb(frame.PCM)
	band := voiceBandDb(frame.PCM, testRate)
	if band > overall-20 {
		t.Errorf("out-of-band tone: band %.2f dB not well below overall %.2f dB", band, overall)
	}
}
