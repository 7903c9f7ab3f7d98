//go:build !js && !wasm

package media

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// AutoDecoder decodes in-process when the container is recognised and hands
// everything else to ffmpeg.
type AutoDecoder struct {
	Native *NativeDecoder
	FFmpeg *FFmpegDecoder
}

func NewAutoDecoder(tempDir string) *AutoDecoder {
	return &AutoDecoder{Native: NewNativeDecoder(), FFmpeg: NewFFmpegDecoder(tempDir)}
}

func (d *AutoDecoder) DecodeSegment(ctx context.Context, src Source, startS, durationS float64) ([]byte, error) {
	if sniff(src.Data) != containerUnknown {
		wav, err := d.Native.DecodeSegment(ctx, src, startS, durationS)
		if err == nil || !d.FFmpeg.Available() {
			return wav, err
		}
	}
	return d.FFmpeg.DecodeSegment(ctx, src, startS, durationS)
}

func (d *AutoDecoder) DecodeHead(ctx context.Context, src Source, headWindowS float64) ([]byte, error) {
	if sniff(src.Data) != containerUnknown {
		wav, err := d.Native.DecodeHead(ctx, src, headWindowS)
		if err == nil || !d.FFmpeg.Available() {
			return wav, err
		}
	}
	return d.FFmpeg.DecodeHead(ctx, src, headWindowS)
}

func (d *AutoDecoder) Duration(ctx context.Context, src Source) (float64, error) {
	if sniff(src.Data) != containerUnknown {
		dur, err := d.Native.Duration(ctx, src)
		if err == nil || !d.FFmpeg.Available() {
			return dur, err
		}
	}
	return d.FFmpeg.Duration(ctx, src)
}

// NewDecoder returns the decoder registered under name: "auto" (or ""),
// "ffmpeg" or "native".
func NewDecoder(name, tempDir string) (Decoder, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		return NewAutoDecoder(tempDir), nil
	case "ffmpeg":
		return NewFFmpegDecoder(tempDir), nil
	case "native":
		return NewNativeDecoder(), nil
	}
	return nil, fmt.Errorf("unknown decoder %q", name)
}

// IsDecoderUnavailable reports errors caused by a missing decoder rather
// than by the media itself.
func IsDecoderUnavailable(err error) bool {
	return errors.Is(err, ErrFFmpegNotFound)
}
