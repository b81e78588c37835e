package energy

import "math"

// fullScale is the absolute full-scale amplitude for signed 16-bit PCM.
const fullScale = 32768.0

// silenceDb is the dBFS value reported for frames with no measurable energy,
// avoiding -Inf from log10(0).
const silenceDb = -120.0

// Voice band probed for band-limited energy. Telephone-quality speech
// concentrates its energy here.
const (
	voiceBandLowHz  = 300.0
	voiceBandHighHz = 3400.0
	voiceBandStepHz = 100.0
)

// overallDb returns the frame's RMS energy in dBFS.
func overallDb(pcm []int16) float64 {
	if len(pcm) == 0 {
		return silenceDb
	}
	var sumSq float64
	for _, s := range pcm {
		v := float64(s)
		sumSq += v * v
	}
	return powerDb(sumSq / float64(len(pcm)))
}

// voiceBandDb returns the energy restricted to the voice band, in dBFS. The
// band is probed at fixed frequency steps with the Goertzel algorithm; each
// probe contributes the mean-square power of its spectral component, so a
// pure in-band tone measures the same as its overall RMS energy.
func voiceBandDb(pcm []int16, sampleRate int) float64 {
	if len(pcm) == 0 || sampleRate <= 0 {
		return silenceDb
	}
	n := float64(len(pcm))
	nyquist := float64(sampleRate) / 2

	var bandPower float64
	for f := voiceBandLowHz; f <= voiceBandHighHz && f < nyquist; f += voiceBandStepHz {
		mag := goertzel(pcm, f, sampleRate)
		// Mean-square power of the component with magnitude mag: 2*(mag/N)^2.
		amp := mag / n
		bandPower += 2 * amp * amp
	}
	return powerDb(bandPower)
}

// zeroCrossingRate returns the fraction of adjacent sample pairs whose signs
// differ. Voiced speech sits in a characteristic mid band: near-silence and
// broadband noise both fall outside it.
func zeroCrossingRate(pcm []int16) float64 {
	if len(pcm) < 2 {
		return 0
	}
	crossings := 0
	for i := 1; i < len(pcm); i++ {
		if (pcm[i-1] >= 0) != (pcm[i] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(pcm)-1)
}

// goertzel returns the spectral magnitude of pcm at frequency hz.
func goertzel(pcm []int16, hz float64, sampleRate int) float64 {
	omega := 2 * math.Pi * hz / float64(sampleRate)
	coeff := 2 * math.Cos(omega)

	var s0, s1, s2 float64
	for _, sample := range pcm {
		s0 = float64(sample) + coeff*s1 - s2
		s2 = s1
		s1 = s0
	}
	power := s1*s1 + s2*s2 - coeff*s1*s2
	if power < 0 {
		power = 0
	}
	return math.Sqrt(power)
}

// powerDb converts a mean-square power (in raw sample units) to dBFS.
func powerDb(meanSquare float64) float64 {
	if meanSquare <= 0 {
		return silenceDb
	}
	db := 10 * math.Log10(meanSquare/(fullScale*fullScale))
	if db < silenceDb {
		return silenceDb
	}
	return db
}
