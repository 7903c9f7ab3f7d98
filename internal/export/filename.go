package export

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	_ "time/tzdata"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	reNonAlnum = regexp.MustCompile(`[^a-z0-9]+`)
	berlin     = loadBerlin()
)

func loadBerlin() *time.Location {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		return time.UTC
	}
	return loc
}

// Slugify folds s to lower-case ASCII words joined by dashes. Accents are
// stripped and "&" reads as "and". An empty result becomes "pattern".
func Slugify(s string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn))), s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)
	folded = strings.ReplaceAll(folded, "&", "-and-")
	folded = reNonAlnum.ReplaceAllString(folded, "-")
	folded = strings.Trim(folded, "-")
	if folded == "" {
		return "pattern"
	}
	return folded
}

// stamp renders now on the Berlin wall clock as YYYYMMDD and HHMM.
func stamp(now time.Time) (string, string) {
	t := now.In(berlin)
	return t.Format("20060102"), t.Format("1504")
}

// PatternFileName names an exported pattern document.
func PatternFileName(name, id string, now time.Time) string {
	date, clock := stamp(now)
	short := id
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("pattern_%s_%s_%s_%s.json", date, clock, Slugify(name), short)
}

// UpdateFileName names a CSV or XML results export; ext has no dot.
func UpdateFileName(patternName, ext string, now time.Time) string {
	date, clock := stamp(now)
	return fmt.Sprintf("update_%s_%s_%s.%s", date, clock, Slugify(patternName), ext)
}
