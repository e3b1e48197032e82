package audio

import "time"

const (
	// CaptureSampleRate is the microphone rate expected by the recognizers.
	CaptureSampleRate = 16000

	// PlaybackSampleRate is the rate synthesized speech is delivered at.
	PlaybackSampleRate = 24000

	// DefaultFrameSize is the number of bytes read from the microphone per
	// frame: 1600 linear16 samples, 100ms at the capture rate.
	DefaultFrameSize = 3200
)

// Format names a PCM sample encoding.
type Format string

const (
	EncodingLinear16 Format = "linear16"
	EncodingMulaw    Format = "mulaw"
	EncodingALaw     Format = "alaw"
)

// SampleBytes is the width of one mono sample, or 0 for an unknown format.
func (f Format) SampleBytes() int {
	switch f {
	case EncodingLinear16:
		return 2
	case EncodingMulaw, EncodingALaw:
		return 1
	}
	return 0
}

// EncodingInfo describes a mono PCM stream.
type EncodingInfo struct {
	SampleRate int
	Format     Format
}

func CaptureEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: CaptureSampleRate, Format: EncodingLinear16}
}

func PlaybackEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: PlaybackSampleRate, Format: EncodingLinear16}
}

// FrameSamples returns how many samples fit in a frame of frameSize bytes.
func (e EncodingInfo) FrameSamples(frameSize int) int {
	if e.Format.SampleBytes() == 0 {
		return 0
	}
	return frameSize / e.Format.SampleBytes()
}

// FrameDuration returns how much audio a frame of frameSize bytes holds.
func (e EncodingInfo) FrameDuration(frameSize int) time.Duration {
	if e.SampleRate <= 0 {
		return 0
	}
	return time.Duration(e.FrameSamples(frameSize)) * time.Second / time.Duration(e.SampleRate)
}
