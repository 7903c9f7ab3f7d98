package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/himanishpuri/IntroMatch/pkg/utils"
)

const (
	DefaultHeadBytes = 64 << 20
	DefaultMaxBytes  = 300 << 20
)

var (
	ErrFetchStatus = errors.New("unexpected http status")
	ErrTooLarge    = errors.New("remote media exceeds size limit")
)

// Fetcher downloads remote media. FetchHead asks for the first HeadBytes
// with a Range request; servers that ignore Range are read up to the same
// limit.
type Fetcher struct {
	Client    *http.Client
	HeadBytes int64
	MaxBytes  int64
}

func NewFetcher() *Fetcher {
	return &Fetcher{
		Client:    &http.Client{Timeout: 5 * time.Minute},
		HeadBytes: DefaultHeadBytes,
		MaxBytes:  DefaultMaxBytes,
	}
}

// FetchHead downloads the leading part of url.
func (f *Fetcher) FetchHead(ctx context.Context, url string) (Source, error) {
	headers := map[string]string{"Range": fmt.Sprintf("bytes=0-%d", f.HeadBytes-1)}
	data, err := f.get(ctx, url, headers, f.HeadBytes, false)
	if err != nil {
		return Source{}, err
	}
	return Source{Name: utils.BasenameFromURL(url), Data: data}, nil
}

// FetchFull downloads url completely, failing past MaxBytes.
func (f *Fetcher) FetchFull(ctx context.Context, url string) (Source, error) {
	data, err := f.get(ctx, url, nil, f.MaxBytes, true)
	if err != nil {
		return Source{}, err
	}
	return Source{Name: utils.BasenameFromURL(url), Data: data}, nil
}

func (f *Fetcher) get(ctx context.Context, url string, headers map[string]string, limit int64, strict bool) ([]byte, error) {
	if !utils.IsHTTPURL(url) {
		return nil, fmt.Errorf("not an http url: %q", url)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return nil, fmt.Errorf("%w: %s for %s", ErrFetchStatus, resp.Status, url)
	}
	if strict && resp.ContentLength > limit {
		return nil, fmt.Errorf("%w: %d bytes", ErrTooLarge, resp.ContentLength)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", url, err)
	}
	if int64(len(data)) > limit {
		if strict {
			return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
		}
		data = data[:limit]
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptySource, url)
	}
	return data, nil
}
