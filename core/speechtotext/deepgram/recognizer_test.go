package deepgram

import (
	"testing"

	"github.com/lingting/rehab-core/core/audio"
	"github.com/lingting/rehab-core/core/speechtotext"
)

func collectResults(results *[]speechtotext.Result) speechtotext.Callbacks {
	return speechtotext.Callbacks{
		OnEvent: func(result speechtotext.Result) { *results = append(*results, result) },
	}.WithDefaults()
}

func TestProcessMessageAccumulatesUntilSpeechFinal(t *testing.T) {
	recognizer := NewRecognizer("key")
	results := []speechtotext.Result{}
	callbacks := collectResults(&results)

	recognizer.processMessage([]byte(`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"今天"}]}}`), callbacks)
	recognizer.processMessage([]byte(`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"今天天气"}]}}`), callbacks)
	recognizer.processMessage([]byte(`{"type":"Results","is_final":false,"channel":{"alternatives":[{"transcript":"怎么样"}]}}`), callbacks)
	recognizer.processMessage([]byte(`{"type":"Results","is_final":true,"speech_final":true,"channel":{"alternatives":[{"transcript":"怎么样"}]}}`), callbacks)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d: %+v", len(results), results)
	}
	if results[0].Text != "今天" || results[0].IsSentenceEnd {
		t.Fatalf("unexpected interim result %+v", results[0])
	}
	if results[1].Text != "今天天气怎么样" || results[1].IsSentenceEnd {
		t.Fatalf("expected interim result to include accumulated text, got %+v", results[1])
	}
	if results[2].Text != "今天天气怎么样" || !results[2].IsSentenceEnd {
		t.Fatalf("unexpected sentence end %+v", results[2])
	}
}

func TestProcessMessageEndsSentenceOnUtteranceEnd(t *testing.T) {
	recognizer := NewRecognizer("key")
	results := []speechtotext.Result{}
	callbacks := collectResults(&results)

	recognizer.processMessage([]byte(`{"type":"SpeechStarted"}`), callbacks)
	recognizer.processMessage([]byte(`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"晴天"}]}}`), callbacks)
	recognizer.processMessage([]byte(`{"type":"UtteranceEnd"}`), callbacks)
	recognizer.processMessage([]byte(`{"type":"UtteranceEnd"}`), callbacks)
	recognizer.processMessage([]byte(`not json`), callbacks)

	if len(results) != 1 || results[0].Text != "晴天" || !results[0].IsSentenceEnd {
		t.Fatalf("expected a single sentence end, got %+v", results)
	}
}

func TestListenEncoding(t *testing.T) {
	encoding, sampleRate, err := listenEncoding(audio.CaptureEncodingInfo())
	if err != nil || encoding != "linear16" || sampleRate != 16000 {
		t.Fatalf("unexpected default encoding %q %d %v", encoding, sampleRate, err)
	}

	if _, _, err := listenEncoding(audio.EncodingInfo{SampleRate: 16000, Format: audio.EncodingMulaw}); err == nil {
		t.Fatalf("expected mulaw at 16kHz to be rejected")
	}
	if _, _, err := listenEncoding(audio.EncodingInfo{SampleRate: 11025, Format: audio.EncodingLinear16}); err == nil {
		t.Fatalf("expected unsupported sample rate to be rejected")
	}
}
