package main

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DASHSCOPE_API_KEY", "key")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Recognizer != recognizerDashScope || cfg.AudioBackend != audioBackendPortAudio {
		t.Fatalf("unexpected backends %q %q", cfg.Recognizer, cfg.AudioBackend)
	}
	if cfg.BroadcastPort != 5001 || cfg.FrameSize != 3200 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.SynthesisTimeout != time.Minute {
		t.Fatalf("expected 1m synthesis timeout, got %s", cfg.SynthesisTimeout)
	}
	if cfg.ShutdownTimeout != 5*time.Second {
		t.Fatalf("expected 5s shutdown timeout, got %s", cfg.ShutdownTimeout)
	}
	if err := cfg.validateCapture(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestLoadConfigReadsDotEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	// Values loaded from .env stay in the process environment, let t.Setenv
	// restore them afterwards.
	for _, key := range []string{"BROADCAST_PORT", "RECOGNIZER"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	if err := os.WriteFile(".env", []byte("BROADCAST_PORT=6001\nRECOGNIZER=deepgram\n"), 0o600); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.BroadcastPort != 6001 || cfg.Recognizer != recognizerDeepgram {
		t.Fatalf("expected .env values, got %+v", cfg)
	}
}

func TestValidateCapture(t *testing.T) {
	testCases := []struct {
		name     string
		cfg      Config
		expected string
	}{
		{
			name:     "missing dashscope key",
			cfg:      Config{Recognizer: recognizerDashScope, AudioBackend: audioBackendPortAudio, FrameSize: 3200},
			expected: "DASHSCOPE_API_KEY",
		},
		{
			name:     "missing deepgram key",
			cfg:      Config{Recognizer: recognizerDeepgram, DashScopeAPIKey: "key", AudioBackend: audioBackendPortAudio, FrameSize: 3200},
			expected: "DEEPGRAM_API_KEY",
		},
		{
			name:     "unknown backend",
			cfg:      Config{Recognizer: recognizerDashScope, DashScopeAPIKey: "key", AudioBackend: "alsa", FrameSize: 3200},
			expected: "audio backend",
		},
		{
			name:     "bad frame size",
			cfg:      Config{Recognizer: recognizerDashScope, DashScopeAPIKey: "key", AudioBackend: audioBackendMiniaudio},
			expected: "frame size",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			err := testCase.cfg.validateCapture()
			if err == nil || !strings.Contains(err.Error(), testCase.expected) {
				t.Fatalf("expected error mentioning %q, got %v", testCase.expected, err)
			}
		})
	}
}
