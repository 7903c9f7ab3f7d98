package audio

import "fmt"

// FormatError reports a buffer that is not a usable RIFF/WAVE container.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return "wav: malformed container: " + e.Reason
}

// UnsupportedFormatError reports a well-formed WAV whose sample layout is not
// mono 16-bit PCM.
type UnsupportedFormatError struct {
	AudioFormat   uint16
	NumChannels   uint16
	BitsPerSample uint16
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("wav: unsupported format (format=%d channels=%d bits=%d), want PCM mono 16-bit",
		e.AudioFormat, e.NumChannels, e.BitsPerSample)
}

func formatErrorf(format string, args ...any) error {
	return &FormatError{Reason: fmt.Sprintf(format, args...)}
}
