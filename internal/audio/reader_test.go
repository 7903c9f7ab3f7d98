package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

type testChunk struct {
	id   string
	body []byte
	// size overrides the declared size when non-zero
	size uint32
}

// buildRIFF assembles a RIFF/WAVE buffer from raw chunks, padding odd bodies.
func buildRIFF(t *testing.T, chunks ...testChunk) []byte {
	t.Helper()
	var body bytes.Buffer
	body.WriteString("WAVE")
	for _, c := range chunks {
		body.WriteString(c.id)
		size := uint32(len(c.body))
		if c.size != 0 {
			size = c.size
		}
		binary.Write(&body, binary.LittleEndian, size)
		body.Write(c.body)
		if len(c.body)%2 == 1 {
			body.WriteByte(0)
		}
	}
	var out bytes.Buffer
	out.WriteString("RIFF")
	binary.Write(&out, binary.LittleEndian, uint32(body.Len()))
	out.Write(body.Bytes())
	return out.Bytes()
}

func fmtBody(format, channels uint16, rate uint32, bits uint16, extra ...byte) []byte {
	var b bytes.Buffer
	blockAlign := channels * bits / 8
	binary.Write(&b, binary.LittleEndian, format)
	binary.Write(&b, binary.LittleEndian, channels)
	binary.Write(&b, binary.LittleEndian, rate)
	binary.Write(&b, binary.LittleEndian, rate*uint32(blockAlign))
	binary.Write(&b, binary.LittleEndian, blockAlign)
	binary.Write(&b, binary.LittleEndian, bits)
	b.Write(extra)
	return b.Bytes()
}

func pcmBody(samples ...int16) []byte {
	var b bytes.Buffer
	binary.Write(&b, binary.LittleEndian, samples)
	return b.Bytes()
}

func TestDecodeWAVRoundTrip(t *testing.T) {
	samples := []int16{0, 16384, -16384, 32767, -32768, 1}

	var buf bytes.Buffer
	if err := WriteWAV16(&buf, 16000, samples); err != nil {
		t.Fatalf("WriteWAV16 failed: %v", err)
	}

	sig, err := DecodeWAV(buf.Bytes())
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}
	if sig.SampleRate != 16000 {
		t.Errorf("Expected sample rate 16000, got %d", sig.SampleRate)
	}
	if len(sig.Samples) != len(samples) {
		t.Fatalf("Expected %d samples, got %d", len(samples), len(sig.Samples))
	}
	for i, s := range samples {
		want := float32(s) / 32768
		if sig.Samples[i] != want {
			t.Errorf("sample %d: expected %v, got %v", i, want, sig.Samples[i])
		}
		if sig.Samples[i] < -1 || sig.Samples[i] > 1 {
			t.Errorf("sample %d out of range: %v", i, sig.Samples[i])
		}
	}
}

func TestDecodeWAVFormatErrors(t *testing.T) {
	validFmt := testChunk{id: "fmt ", body: fmtBody(1, 1, 16000, 16)}
	validData := testChunk{id: "data", body: pcmBody(1, 2, 3)}

	notWave := buildRIFF(t, validFmt, validData)
	copy(notWave[8:12], "AVI ")

	notRiff := buildRIFF(t, validFmt, validData)
	copy(notRiff[0:4], "RIFX")

	tests := []struct {
		name string
		buf  []byte
	}{
		{name: "empty", buf: nil},
		{name: "truncated header", buf: []byte("RIFF\x00\x00")},
		{name: "missing RIFF", buf: notRiff},
		{name: "missing WAVE", buf: notWave},
		{name: "missing fmt", buf: buildRIFF(t, validData)},
		{name: "missing data", buf: buildRIFF(t, validFmt)},
		{name: "short fmt", buf: buildRIFF(t, testChunk{id: "fmt ", body: make([]byte, 12)}, validData)},
		{name: "zero sample rate", buf: buildRIFF(t, testChunk{id: "fmt ", body: fmtBody(1, 1, 0, 16)}, validData)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeWAV(tt.buf)
			if err == nil {
				t.Fatal("Expected error but got nil")
			}
			var fe *FormatError
			if !errors.As(err, &fe) {
				t.Errorf("Expected *FormatError, got %T (%v)", err, err)
			}
		})
	}
}

func TestDecodeWAVUnsupportedFormat(t *testing.T) {
	data := testChunk{id: "data", body: pcmBody(0, 0, 0, 0)}

	tests := []struct {
		name     string
		fmtChunk []byte
	}{
		{name: "stereo", fmtChunk: fmtBody(1, 2, 44100, 16)},
		{name: "8-bit", fmtChunk: fmtBody(1, 1, 8000, 8)},
		{name: "24-bit", fmtChunk: fmtBody(1, 1, 48000, 24)},
		{name: "ieee float", fmtChunk: fmtBody(3, 1, 48000, 32)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeWAV(buildRIFF(t, testChunk{id: "fmt ", body: tt.fmtChunk}, data))
			if err == nil {
				t.Fatal("Expected error but got nil")
			}
			if !IsUnsupportedFormat(err) {
				t.Errorf("Expected *UnsupportedFormatError, got %T (%v)", err, err)
			}
			if IsFormatError(err) {
				t.Errorf("Unsupported layout reported as malformed container: %v", err)
			}
		})
	}
}

func TestScanWavChunksSkipsUnknownChunks(t *testing.T) {
	buf := buildRIFF(t,
		testChunk{id: "LIST", body: []byte("INFOabc")}, // odd size, padded
		testChunk{id: "fmt ", body: fmtBody(1, 1, 22050, 16, 0, 0)},
		testChunk{id: "fact", body: []byte{1, 0, 0, 0}},
		testChunk{id: "data", body: pcmBody(100, -100)},
	)

	sig, err := DecodeWAV(buf)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}
	if sig.SampleRate != 22050 {
		t.Errorf("Expected sample rate 22050, got %d", sig.SampleRate)
	}
	if len(sig.Samples) != 2 {
		t.Fatalf("Expected 2 samples, got %d", len(sig.Samples))
	}
	if sig.Samples[0] != float32(100)/32768 || sig.Samples[1] != float32(-100)/32768 {
		t.Errorf("Unexpected samples: %v", sig.Samples)
	}
}

func TestDecodeWAVDataBeforeFmt(t *testing.T) {
	buf := buildRIFF(t,
		testChunk{id: "data", body: pcmBody(7)},
		testChunk{id: "fmt ", body: fmtBody(1, 1, 8000, 16)},
	)
	sig, err := DecodeWAV(buf)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}
	if len(sig.Samples) != 1 || sig.Samples[0] != float32(7)/32768 {
		t.Errorf("Unexpected samples: %v", sig.Samples)
	}
}

func TestDecodeWAVClampsPlaceholderDataSize(t *testing.T) {
	buf := buildRIFF(t,
		testChunk{id: "fmt ", body: fmtBody(1, 1, 16000, 16)},
		testChunk{id: "data", body: pcmBody(1, 2, 3), size: 0xFFFFFFFF},
	)
	sig, err := DecodeWAV(buf)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}
	if len(sig.Samples) != 3 {
		t.Errorf("Expected 3 samples, got %d", len(sig.Samples))
	}
}

func TestPCM16ToFloat32(t *testing.T) {
	// Little-endian int16: 256, 32767, then a dangling byte
	samples := pcm16ToFloat32([]byte{0x00, 0x01, 0xFF, 0x7F, 0x12})

	if len(samples) != 2 {
		t.Fatalf("Expected 2 samples, got %d", len(samples))
	}
	if samples[0] != 256.0/32768 {
		t.Errorf("Expected first sample %v, got %v", 256.0/32768, samples[0])
	}
	if samples[1] != 32767.0/32768 {
		t.Errorf("Expected second sample %v, got %v", 32767.0/32768, samples[1])
	}
}

func TestEncodeWAV16Clamps(t *testing.T) {
	wav, err := EncodeWAV16(8000, []float32{2, -2, 0})
	if err != nil {
		t.Fatalf("EncodeWAV16 failed: %v", err)
	}
	parsed, err := ParseWAV(wav)
	if err != nil {
		t.Fatalf("ParseWAV failed: %v", err)
	}
	got := []int16{
		int16(binary.LittleEndian.Uint16(parsed.Data[0:])),
		int16(binary.LittleEndian.Uint16(parsed.Data[2:])),
		int16(binary.LittleEndian.Uint16(parsed.Data[4:])),
	}
	want := []int16{32767, -32767, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: expected %d, got %d", i, want[i], got[i])
		}
	}
}

func TestSignalDuration(t *testing.T) {
	sig := &Signal{SampleRate: 16000, Samples: make([]float32, 8000)}
	if d := sig.Duration(); d != 0.5 {
		t.Errorf("Expected 0.5s, got %v", d)
	}
	var empty *Signal
	if d := empty.Duration(); d != 0 {
		t.Errorf("Expected 0 for nil signal, got %v", d)
	}
}
