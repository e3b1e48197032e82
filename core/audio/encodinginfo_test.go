package audio

import (
	"testing"
	"time"
)

func TestDefaultCaptureFrameIsOneHundredMilliseconds(t *testing.T) {
	info := CaptureEncodingInfo()

	if samples := info.FrameSamples(DefaultFrameSize); samples != 1600 {
		t.Fatalf("expected 1600 samples per frame, got %d", samples)
	}
	if got := info.FrameDuration(DefaultFrameSize); got != 100*time.Millisecond {
		t.Fatalf("expected 100ms frames, got %s", got)
	}
}

func TestFrameDurationOfCompandedAudio(t *testing.T) {
	info := EncodingInfo{SampleRate: 8000, Format: EncodingMulaw}
	if got := info.FrameDuration(800); got != 100*time.Millisecond {
		t.Fatalf("expected 100ms, got %s", got)
	}
}

func TestUnknownFormatHasNoFrames(t *testing.T) {
	info := EncodingInfo{SampleRate: 16000, Format: "opus"}
	if got := info.FrameSamples(DefaultFrameSize); got != 0 {
		t.Fatalf("expected 0 samples, got %d", got)
	}
	if got := info.FrameDuration(DefaultFrameSize); got != 0 {
		t.Fatalf("expected zero duration, got %s", got)
	}
}
