package deepgram

import (
	"fmt"

	"github.com/lingting/rehab-core/core/audio"
)

// listenEncoding returns the encoding and sample_rate query values for the
// listen endpoint.
func listenEncoding(encoding audio.EncodingInfo) (string, int, error) {
	switch encoding.SampleRate {
	case 8000, 16000, 24000, 32000, 48000:
	default:
		return "", 0, fmt.Errorf("unsupported sample rate %d", encoding.SampleRate)
	}

	switch encoding.Format {
	case audio.EncodingLinear16:
		return "linear16", encoding.SampleRate, nil
	case audio.EncodingALaw, audio.EncodingMulaw:
		if encoding.SampleRate != 8000 {
			return "", 0, fmt.Errorf("%s requires 8000 Hz, got %d", encoding.Format, encoding.SampleRate)
		}
		return string(encoding.Format), encoding.SampleRate, nil
	default:
		return "", 0, fmt.Errorf("unsupported encoding %q", encoding.Format)
	}
}
