package media

import (
	"bytes"
	"strings"

	"github.com/dhowden/tag"
)

// ReadTitle returns the embedded title tag of src, or "" when the container
// carries none or cannot be read.
func ReadTitle(src Source) string {
	if len(src.Data) == 0 {
		return ""
	}
	m, err := tag.ReadFrom(bytes.NewReader(src.Data))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(m.Title())
}
