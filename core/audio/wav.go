package audio

import (
	"encoding/binary"
	"fmt"
)

// WAVHeaderSize is the size of the canonical RIFF/WAVE header written by
// [EncodeWAV].
const WAVHeaderSize = 44

const wavFormatPCM = 1

// EncodeWAV wraps raw linear PCM in a canonical 44-byte RIFF/WAVE header.
func EncodeWAV(pcm []byte, info EncodingInfo) []byte {
	if info.IsZero() {
		info = GetPlaybackEncodingInfo()
	}
	bitsPerSample := info.Format.ByteSize() * 8

	out := make([]byte, WAVHeaderSize+len(pcm))
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(pcm)))
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], wavFormatPCM)
	binary.LittleEndian.PutUint16(out[22:24], uint16(info.channels()))
	binary.LittleEndian.PutUint32(out[24:28], uint32(info.SampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(info.ByteRate()))
	binary.LittleEndian.PutUint16(out[32:34], uint16(info.BlockAlign()))
	binary.LittleEndian.PutUint16(out[34:36], uint16(bitsPerSample))

	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(pcm)))
	copy(out[WAVHeaderSize:], pcm)

	return out
}

// DecodeWAV validates a RIFF/WAVE container and returns its PCM payload.
//
// Only uncompressed 16-bit PCM is accepted. Chunks other than "fmt " and
// "data" are skipped. An empty payload is reported as [ErrPlaybackDecode]
// since there is nothing to play.
func DecodeWAV(container []byte) ([]byte, EncodingInfo, error) {
	if len(container) < 12 {
		return nil, EncodingInfo{}, fmt.Errorf("%w: %d bytes is shorter than a RIFF header", ErrInvalidContainer, len(container))
	}
	if string(container[0:4]) != "RIFF" || string(container[8:12]) != "WAVE" {
		return nil, EncodingInfo{}, fmt.Errorf("%w: missing RIFF/WAVE signature", ErrInvalidContainer)
	}

	var (
		info    EncodingInfo
		haveFmt bool
	)
	offset := 12
	for offset+8 <= len(container) {
		id := string(container[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(container[offset+4 : offset+8]))
		body := offset + 8
		if size < 0 || body+size > len(container) {
			// Streaming writers sometimes leave the data size unset; take
			// what is there.
			if id == "data" {
				size = len(container) - body
			} else {
				return nil, EncodingInfo{}, fmt.Errorf("%w: chunk %q overruns container", ErrInvalidContainer, id)
			}
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, EncodingInfo{}, fmt.Errorf("%w: fmt chunk too short", ErrInvalidContainer)
			}
			chunk := container[body : body+size]
			if format := binary.LittleEndian.Uint16(chunk[0:2]); format != wavFormatPCM {
				return nil, EncodingInfo{}, fmt.Errorf("%w: unsupported format code %d", ErrInvalidContainer, format)
			}
			if bits := binary.LittleEndian.Uint16(chunk[14:16]); bits != 16 {
				return nil, EncodingInfo{}, fmt.Errorf("%w: unsupported bit depth %d", ErrInvalidContainer, bits)
			}
			info = EncodingInfo{
				Channels:   int(binary.LittleEndian.Uint16(chunk[2:4])),
				SampleRate: int(binary.LittleEndian.Uint32(chunk[4:8])),
				Format:     EncodingLinear16,
			}
			if info.SampleRate == 0 || info.Channels == 0 {
				return nil, EncodingInfo{}, fmt.Errorf("%w: zero sample rate or channel count", ErrInvalidContainer)
			}
			haveFmt = true

		case "data":
			if !haveFmt {
				return nil, EncodingInfo{}, fmt.Errorf("%w: data chunk before fmt chunk", ErrInvalidContainer)
			}
			pcm := container[body : body+size]
			pcm = pcm[:len(pcm)-len(pcm)%info.BlockAlign()]
			if len(pcm) == 0 {
				return nil, info, fmt.Errorf("%w: empty audio payload", ErrPlaybackDecode)
			}
			return pcm, info, nil
		}

		offset = body + size + size%2
	}

	return nil, EncodingInfo{}, fmt.Errorf("%w: no data chunk", ErrInvalidContainer)
}
