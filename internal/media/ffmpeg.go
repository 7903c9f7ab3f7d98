//go:build !js && !wasm

package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/himanishpuri/IntroMatch/pkg/utils"
)

var ErrFFmpegNotFound = errors.New("ffmpeg binary not found")

// FFmpegDecoder shells out to ffmpeg and ffprobe. Sources are written to
// TempDir for the duration of one call.
type FFmpegDecoder struct {
	FFmpegPath  string
	FFprobePath string
	TempDir     string
	Timeout     time.Duration
}

func NewFFmpegDecoder(tempDir string) *FFmpegDecoder {
	return &FFmpegDecoder{
		FFmpegPath:  "ffmpeg",
		FFprobePath: "ffprobe",
		TempDir:     tempDir,
		Timeout:     2 * time.Minute,
	}
}

// Available reports whether the ffmpeg binary can be found.
func (d *FFmpegDecoder) Available() bool {
	_, err := exec.LookPath(d.FFmpegPath)
	return err == nil
}

func secs(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func (d *FFmpegDecoder) DecodeSegment(ctx context.Context, src Source, startS, durationS float64) ([]byte, error) {
	if startS < 0 || durationS <= 0 {
		return nil, fmt.Errorf("invalid segment start=%v duration=%v", startS, durationS)
	}
	return d.convert(ctx, src, []string{"-ss", secs(startS), "-t", secs(durationS)})
}

func (d *FFmpegDecoder) DecodeHead(ctx context.Context, src Source, headWindowS float64) ([]byte, error) {
	if headWindowS <= 0 {
		return nil, fmt.Errorf("invalid head window %v", headWindowS)
	}
	return d.convert(ctx, src, []string{"-t", secs(headWindowS)})
}

// convert runs ffmpeg with inputArgs placed before -i.
func (d *FFmpegDecoder) convert(ctx context.Context, src Source, inputArgs []string) ([]byte, error) {
	if err := checkSource(src); err != nil {
		return nil, err
	}
	if !d.Available() {
		return nil, ErrFFmpegNotFound
	}
	ctx, cancel := d.withDeadline(ctx)
	defer cancel()

	inPath, err := utils.WriteTempFile(d.TempDir, src.Ext(), src.Data)
	if err != nil {
		return nil, err
	}
	defer utils.DeleteFile(inPath)

	outPath := inPath + ".out.wav"
	defer utils.DeleteFile(outPath)

	args := []string{"-hide_banner", "-loglevel", "error", "-y"}
	args = append(args, inputArgs...)
	args = append(args,
		"-i", inPath,
		"-vn",
		"-ac", "1",
		"-ar", strconv.Itoa(TargetSampleRate),
		"-sample_fmt", "s16",
		outPath,
	)

	cmd := exec.CommandContext(ctx, d.FFmpegPath, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ffmpeg failed on %s: %v (%s)", src.Name, err, out)
	}

	wav, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("reading ffmpeg output: %w", err)
	}
	return wav, nil
}

type ffprobeOutput struct {
	Format struct {
		Filename string            `json:"filename"`
		Duration string            `json:"duration"`
		Format   string            `json:"format_name"`
		Tags     map[string]string `json:"tags"`
	} `json:"format"`
}

// Duration asks ffprobe for the container duration in seconds.
func (d *FFmpegDecoder) Duration(ctx context.Context, src Source) (float64, error) {
	if err := checkSource(src); err != nil {
		return 0, err
	}
	if _, err := exec.LookPath(d.FFprobePath); err != nil {
		return 0, fmt.Errorf("ffprobe binary not found: %w", err)
	}
	ctx, cancel := d.withDeadline(ctx)
	defer cancel()

	inPath, err := utils.WriteTempFile(d.TempDir, src.Ext(), src.Data)
	if err != nil {
		return 0, err
	}
	defer utils.DeleteFile(inPath)

	cmd := exec.CommandContext(ctx, d.FFprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		inPath,
	)
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("ffprobe failed on %s: %w", src.Name, err)
	}
	return parseProbeDuration(out)
}

func parseProbeDuration(out []byte) (float64, error) {
	var probe ffprobeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return 0, fmt.Errorf("parsing ffprobe output: %w", err)
	}
	dur, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil || dur <= 0 {
		return 0, fmt.Errorf("ffprobe reported no duration (%q)", probe.Format.Duration)
	}
	return dur, nil
}

func (d *FFmpegDecoder) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || d.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d.Timeout)
}
