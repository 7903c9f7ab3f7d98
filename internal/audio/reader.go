package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

// Signal is decoded mono audio with samples in [-1, 1].
type Signal struct {
	SampleRate int
	Samples    []float32
}

// Duration returns the signal length in seconds.
func (s *Signal) Duration() float64 {
	if s == nil || s.SampleRate <= 0 {
		return 0
	}
	return float64(len(s.Samples)) / float64(s.SampleRate)
}

// WavFormat holds the format information from the fmt chunk
type WavFormat struct {
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	BitsPerSample uint16
}

// WavData holds the parsed fmt chunk and the raw data chunk
type WavData struct {
	Format WavFormat
	Data   []byte
}

const fmtChunkMinSize = 16

// readRIFFHeader validates the 12-byte RIFF/WAVE header
func readRIFFHeader(r *bytes.Reader) error {
	var riff [4]byte
	var fileSize uint32
	var wave [4]byte

	if err := binary.Read(r, binary.LittleEndian, &riff); err != nil {
		return formatErrorf("reading RIFF header: %v", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &fileSize); err != nil {
		return formatErrorf("reading RIFF size: %v", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &wave); err != nil {
		return formatErrorf("reading WAVE id: %v", err)
	}

	if string(riff[:]) != "RIFF" {
		return formatErrorf("missing RIFF tag")
	}
	if string(wave[:]) != "WAVE" {
		return formatErrorf("missing WAVE tag")
	}
	return nil
}

// readFmtChunk reads the fmt chunk body; extension bytes past 16 are skipped.
func readFmtChunk(r *bytes.Reader, chunkSize uint32) (*WavFormat, error) {
	if chunkSize < fmtChunkMinSize {
		return nil, formatErrorf("fmt chunk too short (%d bytes)", chunkSize)
	}

	var f struct {
		AudioFormat   uint16
		NumChannels   uint16
		SampleRate    uint32
		ByteRate      uint32
		BlockAlign    uint16
		BitsPerSample uint16
	}
	if err := binary.Read(r, binary.LittleEndian, &f); err != nil {
		return nil, formatErrorf("reading fmt chunk: %v", err)
	}

	if extra := int64(chunkSize) - fmtChunkMinSize; extra > 0 {
		if err := skipBytes(r, extra); err != nil {
			return nil, formatErrorf("skipping fmt extension: %v", err)
		}
	}

	return &WavFormat{
		AudioFormat:   f.AudioFormat,
		NumChannels:   f.NumChannels,
		SampleRate:    f.SampleRate,
		BitsPerSample: f.BitsPerSample,
	}, nil
}

// readDataChunk returns the data chunk body. Streaming writers put a
// placeholder size in the header, so an overrunning size is clamped to
// whatever is left in the buffer.
func readDataChunk(r *bytes.Reader, chunkSize uint32) []byte {
	n := int64(chunkSize)
	if left := int64(r.Len()); n > left {
		n = left
	}
	data := make([]byte, n)
	// bytes.Reader cannot short-read within Len()
	_, _ = io.ReadFull(r, data)
	return data
}

func skipBytes(r *bytes.Reader, n int64) error {
	if n > int64(r.Len()) {
		return io.ErrUnexpectedEOF
	}
	_, err := r.Seek(n, io.SeekCurrent)
	return err
}

// scanWavChunks walks the chunk list after the RIFF header until both the
// fmt and data chunks have been seen.
func scanWavChunks(r *bytes.Reader) (*WavData, error) {
	var format *WavFormat
	var data []byte
	dataFound := false

walk:
	for r.Len() >= 8 {
		var chunkID [4]byte
		var chunkSize uint32
		if err := binary.Read(r, binary.LittleEndian, &chunkID); err != nil {
			return nil, formatErrorf("reading chunk id: %v", err)
		}
		if err := binary.Read(r, binary.LittleEndian, &chunkSize); err != nil {
			return nil, formatErrorf("reading chunk size: %v", err)
		}

		id := string(chunkID[:])
		switch id {
		case "fmt ":
			f, err := readFmtChunk(r, chunkSize)
			if err != nil {
				return nil, err
			}
			format = f
		case "data":
			data = readDataChunk(r, chunkSize)
			dataFound = true
		default:
			// LIST, fact, junk and friends
			if err := skipBytes(r, int64(chunkSize)); err != nil {
				// a truncated trailing chunk ends the walk
				break walk
			}
		}

		if format != nil && dataFound {
			break
		}

		// RIFF pads odd-sized chunks to an even boundary
		if chunkSize%2 == 1 && r.Len() > 0 {
			_ = skipBytes(r, 1)
		}
	}

	if format == nil {
		return nil, formatErrorf("fmt chunk not found")
	}
	if !dataFound {
		return nil, formatErrorf("data chunk not found")
	}

	return &WavData{Format: *format, Data: data}, nil
}

// ParseWAV validates the container and returns its fmt and data chunks
// without interpreting the samples.
func ParseWAV(buf []byte) (*WavData, error) {
	r := bytes.NewReader(buf)
	if err := readRIFFHeader(r); err != nil {
		return nil, err
	}
	return scanWavChunks(r)
}

// DecodeWAV decodes an in-memory mono 16-bit PCM WAV file into a Signal.
// Malformed containers yield *FormatError; other sample layouts yield
// *UnsupportedFormatError.
func DecodeWAV(buf []byte) (*Signal, error) {
	wav, err := ParseWAV(buf)
	if err != nil {
		return nil, err
	}

	f := wav.Format
	if f.AudioFormat != 1 || f.NumChannels != 1 || f.BitsPerSample != 16 {
		return nil, &UnsupportedFormatError{
			AudioFormat:   f.AudioFormat,
			NumChannels:   f.NumChannels,
			BitsPerSample: f.BitsPerSample,
		}
	}
	if f.SampleRate == 0 {
		return nil, formatErrorf("sample rate is zero")
	}

	return &Signal{
		SampleRate: int(f.SampleRate),
		Samples:    pcm16ToFloat32(wav.Data),
	}, nil
}

// pcm16ToFloat32 converts little-endian int16 samples to v/32768.
// A trailing odd byte is ignored.
func pcm16ToFloat32(data []byte) []float32 {
	n := len(data) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(data[2*i:]))
		out[i] = float32(v) / 32768
	}
	return out
}

// IsFormatError reports whether err is a malformed-container error.
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

// IsUnsupportedFormat reports whether err is an unsupported-layout error.
func IsUnsupportedFormat(err error) bool {
	var ue *UnsupportedFormatError
	return errors.As(err, &ue)
}
