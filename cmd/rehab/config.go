package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	recognizerDashScope = "dashscope"
	recognizerDeepgram  = "deepgram"

	audioBackendPortAudio = "portaudio"
	audioBackendMiniaudio = "miniaudio"
)

type Config struct {
	DashScopeAPIKey string `env:"DASHSCOPE_API_KEY"`
	DeepgramAPIKey  string `env:"DEEPGRAM_API_KEY"`

	Recognizer   string `env:"RECOGNIZER" envDefault:"dashscope"`
	AudioBackend string `env:"AUDIO_BACKEND" envDefault:"portaudio"`
	FrameSize    int    `env:"FRAME_SIZE" envDefault:"3200"`

	GeneratorModel   string `env:"GENERATOR_MODEL" envDefault:"qwen-plus"`
	GeneratorBaseURL string `env:"GENERATOR_BASE_URL" envDefault:"https://dashscope.aliyuncs.com/compatible-mode/v1"`
	Voice            string `env:"TTS_VOICE" envDefault:"Cherry"`

	BroadcastHost string `env:"BROADCAST_HOST" envDefault:"0.0.0.0"`
	BroadcastPort int    `env:"BROADCAST_PORT" envDefault:"5001"`

	SynthesisTimeout time.Duration `env:"SYNTHESIS_TIMEOUT" envDefault:"60s"`
	GenerateTimeout  time.Duration `env:"GENERATE_TIMEOUT" envDefault:"60s"`
	RestartBackoff   time.Duration `env:"RESTART_BACKOFF" envDefault:"1s"`
	MaxRestartDelay  time.Duration `env:"MAX_RESTART_DELAY" envDefault:"30s"`
	ShutdownTimeout  time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"5s"`

	ReportsDir string `env:"REPORTS_DIR" envDefault:"reports"`
	ReportAddr string `env:"REPORT_ADDR" envDefault:":443"`
	CharsFile  string `env:"CHARS_FILE" envDefault:"practice/chars.json"`
	CueDir     string `env:"CUE_DIR" envDefault:"audio"`

	TelemetryStdout bool `env:"TELEMETRY_STDOUT" envDefault:"false"`
}

// loadConfig reads .env when present, then the environment.
func loadConfig() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env file", "error", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse configuration: %w", err)
	}
	return cfg, nil
}

// validateCapture checks the settings needed by the commands that listen.
func (c Config) validateCapture() error {
	switch c.Recognizer {
	case recognizerDashScope:
		if c.DashScopeAPIKey == "" {
			return errors.New("DASHSCOPE_API_KEY is required for the dashscope recognizer")
		}
	case recognizerDeepgram:
		if c.DeepgramAPIKey == "" {
			return errors.New("DEEPGRAM_API_KEY is required for the deepgram recognizer")
		}
	default:
		return fmt.Errorf("unknown recognizer %q", c.Recognizer)
	}

	switch c.AudioBackend {
	case audioBackendPortAudio, audioBackendMiniaudio:
	default:
		return fmt.Errorf("unknown audio backend %q", c.AudioBackend)
	}

	if c.FrameSize <= 0 {
		return fmt.Errorf("invalid frame size %d", c.FrameSize)
	}
	return nil
}
