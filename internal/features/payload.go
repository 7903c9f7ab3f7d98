package features

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	xxhash "github.com/OneOfOne/xxhash"
)

// PayloadFormat names the on-disk encoding: little-endian float32, base64.
const PayloadFormat = "f32"

var (
	ErrPayloadSize     = errors.New("feature payload size mismatch")
	ErrPayloadChecksum = errors.New("feature payload checksum mismatch")
)

func matrixBytes(m *Matrix) []byte {
	buf := make([]byte, len(m.Data)*4)
	for i, v := range m.Data {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// EncodePayload returns the base64 text of m's data.
func EncodePayload(m *Matrix) string {
	return base64.StdEncoding.EncodeToString(matrixBytes(m))
}

// DecodePayload restores a frames x dims matrix from EncodePayload output.
func DecodePayload(data string, frames, dims int) (*Matrix, error) {
	if frames < 0 || dims <= 0 {
		return nil, fmt.Errorf("%w: frames=%d dims=%d", ErrPayloadSize, frames, dims)
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decoding feature payload: %w", err)
	}
	if len(raw) != frames*dims*4 {
		return nil, fmt.Errorf("%w: have %d bytes, want %d", ErrPayloadSize, len(raw), frames*dims*4)
	}

	m := NewMatrix(frames, dims)
	for i := range m.Data {
		m.Data[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return m, nil
}

// Checksum is the xxhash64 of the encoded float bytes, as 16 hex digits.
func Checksum(m *Matrix) string {
	return fmt.Sprintf("%016x", xxhash.Checksum64(matrixBytes(m)))
}

// VerifyChecksum compares sum with m's checksum; an empty sum is accepted.
func VerifyChecksum(m *Matrix, sum string) error {
	if sum == "" {
		return nil
	}
	if got := Checksum(m); got != sum {
		return fmt.Errorf("%w: have %s, want %s", ErrPayloadChecksum, got, sum)
	}
	return nil
}
