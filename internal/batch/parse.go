// Package batch reads the batch lists operators paste in: one media item
// per line, either a bare URL or a metadata row.
package batch

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/himanishpuri/IntroMatch/pkg/models"
	"github.com/himanishpuri/IntroMatch/pkg/utils"
)

// DefaultCDNBase prefixes URL fields that are CMS paths rather than .mp4 links.
const DefaultCDNBase = "https://mediandr-a.akamaihd.net"

var reHTTP = regexp.MustCompile(`(?i)^https?://`)

// List is a parsed batch: the URLs to process in order plus metadata keyed
// by URL, URL basename or CMS id.
type List struct {
	URLs []string
	Meta map[string]models.MediaMeta
}

// Lookup finds metadata for a file or URL name, trying name as given, then
// its basename, then the basename without extension.
func (l *List) Lookup(name string) (models.MediaMeta, bool) {
	if l == nil {
		return models.MediaMeta{}, false
	}
	if m, ok := l.Meta[name]; ok {
		return m, true
	}
	base := name
	if utils.IsHTTPURL(name) {
		base = utils.BasenameFromURL(name)
	} else if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		base = name[i+1:]
	}
	if m, ok := l.Meta[base]; ok {
		return m, true
	}
	m, ok := l.Meta[utils.StripExt(base)]
	return m, ok
}

// Items turns the list's URLs into analysis items with their metadata.
func (l *List) Items() []Item {
	items := make([]Item, 0, len(l.URLs))
	for _, u := range l.URLs {
		meta, _ := l.Lookup(u)
		if meta.URL == "" {
			meta.URL = u
		}
		items = append(items, Item{URL: u, Meta: meta})
	}
	return items
}

// Item is one URL task with the metadata its row carried.
type Item struct {
	URL  string
	Meta models.MediaMeta
}

// Parser holds batch parsing settings.
type Parser struct {
	CDNBase string
}

// Parse reads r with the default CDN base.
func Parse(r io.Reader) (*List, error) {
	return (&Parser{CDNBase: DefaultCDNBase}).Parse(r)
}

// ParseString is Parse over an in-memory list.
func ParseString(text string) (*List, error) {
	return Parse(strings.NewReader(text))
}

func (p *Parser) Parse(r io.Reader) (*List, error) {
	list := &List{Meta: make(map[string]models.MediaMeta)}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		p.parseLine(list, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading batch list: %w", err)
	}
	return list, nil
}

func (p *Parser) parseLine(list *List, line string) {
	parts := splitFields(line)

	if len(parts) == 1 {
		if reHTTP.MatchString(parts[0]) {
			list.URLs = append(list.URLs, parts[0])
		}
		return
	}

	field := func(i int) string {
		if i < len(parts) {
			return parts[i]
		}
		return ""
	}

	entry := models.MediaMeta{
		CMSID:      field(0),
		ExternalID: field(1),
		URL:        p.toMP4(field(2)),
	}
	if d, ok := ParseTime(field(3)); ok {
		entry.DurationS = &d
	}

	if entry.URL != "" {
		list.Meta[entry.URL] = entry
		list.Meta[utils.BasenameFromURL(entry.URL)] = entry
		list.URLs = append(list.URLs, entry.URL)
	}
	if entry.CMSID != "" && entry.URL == "" {
		list.Meta[entry.CMSID] = entry
	}
}

// splitFields prefers TAB, falls back to comma.
func splitFields(line string) []string {
	var parts []string
	switch {
	case strings.Contains(line, "\t"):
		parts = strings.Split(line, "\t")
	case strings.Contains(line, ","):
		parts = strings.Split(line, ",")
	default:
		return []string{line}
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// toMP4 leaves .mp4 links alone and turns anything else into a CDN link.
func (p *Parser) toMP4(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	noQuery := raw
	if i := strings.IndexAny(noQuery, "?#"); i >= 0 {
		noQuery = noQuery[:i]
	}
	if strings.HasSuffix(strings.ToLower(noQuery), ".mp4") {
		return raw
	}
	base := strings.TrimRight(p.CDNBase, "/")
	if base == "" {
		base = DefaultCDNBase
	}
	return base + "/" + strings.TrimLeft(raw, "/") + ".ln.mp4"
}

