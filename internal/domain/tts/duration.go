package tts

import (
	"bytes"

	"github.com/hajimehoshi/go-mp3"
)

// Fallback rate for formats we do not decode: roughly 128 kbps audio.
const defaultBytesPerSecond = 16000.0

// EstimateDuration derives playback duration from the audio payload. MP3 data
// is decoded for an exact figure; anything else uses the bytes-per-second
// approximation.
func EstimateDuration(data []byte, format string) float64 {
	if format == "mp3" {
		if d, err := mp3Duration(data); err == nil {
			return d
		}
	}
	if len(data) == 0 {
		return 0
	}
	return float64(len(data)) / defaultBytesPerSecond
}

func mp3Duration(data []byte) (float64, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return 0, err
	}
	// Length reports decoded PCM bytes: 16-bit stereo, 4 bytes per frame.
	frames := decoder.Length() / 4
	return float64(frames) / float64(decoder.SampleRate()), nil
}
