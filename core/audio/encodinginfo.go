package audio

import "time"

const (
	// CaptureSampleRate is the rate microphone frames are captured and sent at.
	CaptureSampleRate = 16000
	// PlaybackSampleRate is the rate synthesized fragments are declared at
	// when they are packaged for playback.
	PlaybackSampleRate = 44100

	DefaultFormat = "linear16"
)

func GetDefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: CaptureSampleRate, Channels: 1, Format: encodingFormat(DefaultFormat)}
}

// GetPlaybackEncodingInfo describes the synthesized audio stream received
// from the backend: 44.1 kHz, mono, signed 16-bit little-endian.
func GetPlaybackEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: PlaybackSampleRate, Channels: 1, Format: EncodingLinear16}
}

type EncodingInfo struct {
	SampleRate int
	Channels   int
	Format     encodingFormat
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

func (e EncodingInfo) channels() int {
	if e.Channels <= 0 {
		return 1
	}
	return e.Channels
}

// BlockAlign is the size in bytes of one frame across all channels.
func (e EncodingInfo) BlockAlign() int {
	return e.channels() * e.Format.ByteSize()
}

// ByteRate is the number of bytes per second of audio.
func (e EncodingInfo) ByteRate() int {
	return e.SampleRate * e.BlockAlign()
}

// Duration returns how long n bytes of audio in this encoding play for.
func (e EncodingInfo) Duration(n int) time.Duration {
	if e.ByteRate() <= 0 {
		return 0
	}
	return time.Duration(float64(n) / float64(e.ByteRate()) * float64(time.Second))
}

func (e EncodingInfo) SilenceValue() byte {
	switch e.Format {
	case encodingFormat("alaw"):
		return 0x55
	case encodingFormat("mulaw"):
		return 0xFF
	case encodingFormat("linear16"):
		return 0
	}

	return 0
}

type encodingFormat string

func (e encodingFormat) Name() string {
	return string(e)
}

func (e encodingFormat) ByteSize() int {
	switch e {
	case encodingFormat("mulaw"), encodingFormat("alaw"):
		return 1
	case encodingFormat("linear16"):
		return 2
	}
	return -1
}

const (
	EncodingMulaw    encodingFormat = "mulaw"
	EncodingALaw     encodingFormat = "alaw"
	EncodingLinear16 encodingFormat = "linear16"
)
