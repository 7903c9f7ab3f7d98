package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"

	"github.com/himanishpuri/IntroMatch/internal/audio"
)

// NativeDecoder decodes WAV, MP3 and Ogg Vorbis in-process. It handles
// audio-only containers; video still needs FFmpegDecoder.
type NativeDecoder struct{}

func NewNativeDecoder() *NativeDecoder { return &NativeDecoder{} }

// pcmStream yields interleaved float32 samples in [-1, 1].
type pcmStream interface {
	SampleRate() int
	Channels() int
	ReadSamples(dst []float32) (int, error)
}

type container int

const (
	containerUnknown container = iota
	containerWAV
	containerMP3
	containerOgg
)

func sniff(data []byte) container {
	switch {
	case len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return containerWAV
	case len(data) >= 4 && string(data[0:4]) == "OggS":
		return containerOgg
	case len(data) >= 3 && string(data[0:3]) == "ID3":
		return containerMP3
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return containerMP3
	}
	return containerUnknown
}

func (d *NativeDecoder) DecodeSegment(ctx context.Context, src Source, startS, durationS float64) ([]byte, error) {
	if startS < 0 || durationS <= 0 {
		return nil, fmt.Errorf("invalid segment start=%v duration=%v", startS, durationS)
	}
	return d.decode(ctx, src, startS, durationS)
}

func (d *NativeDecoder) DecodeHead(ctx context.Context, src Source, headWindowS float64) ([]byte, error) {
	if headWindowS <= 0 {
		return nil, fmt.Errorf("invalid head window %v", headWindowS)
	}
	return d.decode(ctx, src, 0, headWindowS)
}

func (d *NativeDecoder) decode(ctx context.Context, src Source, startS, durationS float64) ([]byte, error) {
	if err := checkSource(src); err != nil {
		return nil, err
	}
	stream, err := openStream(src)
	if err != nil {
		return nil, err
	}
	rate := stream.SampleRate()
	if rate <= 0 {
		return nil, fmt.Errorf("%s: invalid sample rate %d", src.Name, rate)
	}

	skip := int(startS * float64(rate))
	keep := int(durationS * float64(rate))
	mono, err := readMono(ctx, stream, skip, keep)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", src.Name, err)
	}
	return audio.EncodeWAV16(TargetSampleRate, Resample(mono, rate, TargetSampleRate))
}

// Duration reports the stream length in seconds.
func (d *NativeDecoder) Duration(ctx context.Context, src Source) (float64, error) {
	if err := checkSource(src); err != nil {
		return 0, err
	}
	r := bytes.NewReader(src.Data)
	switch sniff(src.Data) {
	case containerWAV:
		dec := wav.NewDecoder(r)
		if !dec.IsValidFile() {
			return 0, fmt.Errorf("%s: invalid wav file", src.Name)
		}
		dur, err := dec.Duration()
		if err != nil {
			return 0, fmt.Errorf("%s: %w", src.Name, err)
		}
		return dur.Seconds(), nil
	case containerMP3:
		dec, err := gomp3.NewDecoder(r)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", src.Name, err)
		}
		// 16-bit stereo frames
		return float64(dec.Length()) / 4 / float64(dec.SampleRate()), nil
	case containerOgg:
		dec, err := oggvorbis.NewReader(r)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", src.Name, err)
		}
		return float64(dec.Length()) / float64(dec.SampleRate()), nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnsupportedContainer, src.Name)
}

func openStream(src Source) (pcmStream, error) {
	r := bytes.NewReader(src.Data)
	switch sniff(src.Data) {
	case containerWAV:
		return newWavStream(r)
	case containerMP3:
		dec, err := gomp3.NewDecoder(r)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", src.Name, err)
		}
		return &mp3Stream{dec: dec}, nil
	case containerOgg:
		dec, err := oggvorbis.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", src.Name, err)
		}
		return &oggStream{dec: dec}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedContainer, src.Name)
}

// readMono downmixes stream, drops the first skip frames and returns at
// most keep frames. A stream that ends early returns what it had.
func readMono(ctx context.Context, stream pcmStream, skip, keep int) ([]float32, error) {
	channels := stream.Channels()
	if channels <= 0 {
		return nil, fmt.Errorf("invalid channel count %d", channels)
	}
	buf := make([]float32, 4096*channels)
	out := make([]float32, 0, keep)
	pos := 0

	for len(out) < keep {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := stream.ReadSamples(buf)
		frames := n / channels
		for f := 0; f < frames && len(out) < keep; f++ {
			if pos >= skip {
				var sum float32
				for c := 0; c < channels; c++ {
					sum += buf[f*channels+c]
				}
				out = append(out, sum/float32(channels))
			}
			pos++
		}
		if errors.Is(err, io.EOF) || (n == 0 && err == nil) {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

type wavStream struct {
	dec   *wav.Decoder
	buf   *goaudio.IntBuffer
	scale float32
}

func newWavStream(r io.ReadSeeker) (*wavStream, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, errors.New("invalid wav file")
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("seeking wav data: %w", err)
	}
	if dec.BitDepth == 0 || dec.NumChans == 0 {
		return nil, errors.New("wav header missing bit depth or channels")
	}
	return &wavStream{
		dec:   dec,
		buf:   &goaudio.IntBuffer{Format: dec.Format(), Data: make([]int, 4096)},
		scale: float32(int64(1) << (dec.BitDepth - 1)),
	}, nil
}

func (s *wavStream) SampleRate() int { return int(s.dec.SampleRate) }
func (s *wavStream) Channels() int   { return int(s.dec.NumChans) }

func (s *wavStream) ReadSamples(dst []float32) (int, error) {
	if cap(s.buf.Data) < len(dst) {
		s.buf.Data = make([]int, len(dst))
	}
	s.buf.Data = s.buf.Data[:len(dst)]
	n, err := s.dec.PCMBuffer(s.buf)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}
	for i := 0; i < n; i++ {
		dst[i] = float32(s.buf.Data[i]) / s.scale
	}
	return n, nil
}

// go-mp3 always yields 16-bit little-endian stereo.
type mp3Stream struct {
	dec *gomp3.Decoder
	raw []byte
}

func (s *mp3Stream) SampleRate() int { return s.dec.SampleRate() }
func (s *mp3Stream) Channels() int   { return 2 }

func (s *mp3Stream) ReadSamples(dst []float32) (int, error) {
	need := len(dst) * 2
	if cap(s.raw) < need {
		s.raw = make([]byte, need)
	}
	s.raw = s.raw[:need]
	n, err := io.ReadFull(s.dec, s.raw)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = io.EOF
	}
	samples := n / 2
	for i := 0; i < samples; i++ {
		v := int16(uint16(s.raw[2*i]) | uint16(s.raw[2*i+1])<<8)
		dst[i] = float32(v) / 32768
	}
	return samples, err
}

type oggStream struct {
	dec *oggvorbis.Reader
}

func (s *oggStream) SampleRate() int { return s.dec.SampleRate() }
func (s *oggStream) Channels() int   { return s.dec.Channels() }

func (s *oggStream) ReadSamples(dst []float32) (int, error) {
	ch := s.Channels()
	want := (len(dst) / ch) * ch
	n, err := s.dec.Read(dst[:want])
	return n, err
}
