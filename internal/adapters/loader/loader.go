// Package loader provides corpus loading adapters.
package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	httpPkg "net/http"
	"os"
	"strings"
	"time"

	"github.com/0xcro3dile/chatrag-go/internal/domain/entities"
)

// JSONLoader reads a chat corpus stored as a JSON array of message objects.
// The source is a file path or an http(s) URL.
type JSONLoader struct {
	client *httpPkg.Client
}

// NewJSONLoader creates a corpus loader.
func NewJSONLoader() *JSONLoader {
	return &JSONLoader{client: &httpPkg.Client{Timeout: 60 * time.Second}}
}

// Load returns every record of the source in order. Content is not filtered.
func (l *JSONLoader) Load(ctx context.Context, source string) ([]entities.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		msgs []entities.RawMessage
		err  error
	)
	if isURL(source) {
		msgs, err = l.loadURL(ctx, source)
	} else {
		msgs, err = l.loadFile(source)
	}
	if err != nil {
		log.Printf("[ERROR] Failed to load corpus %s: %v", source, err)
		return nil, err
	}

	log.Printf("[INFO] Loaded %d messages from %s", len(msgs), source)
	return msgs, nil
}

func (l *JSONLoader) loadFile(path string) ([]entities.RawMessage, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("corpus %s: %w", path, entities.ErrNotFound)
		}
		return nil, err
	}
	defer file.Close()

	return Decode(file)
}

// loadURL fetches a corpus served over HTTP.
func (l *JSONLoader) loadURL(ctx context.Context, url string) ([]entities.RawMessage, error) {
	req, err := httpPkg.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == httpPkg.StatusNotFound:
		return nil, fmt.Errorf("corpus %s: %w", url, entities.ErrNotFound)
	case resp.StatusCode != httpPkg.StatusOK:
		return nil, fmt.Errorf("corpus %s: unexpected status %d", url, resp.StatusCode)
	}
	return Decode(resp.Body)
}

// Decode reads a JSON array of messages, reporting the index of the first bad record.
func Decode(r io.Reader) ([]entities.RawMessage, error) {
	dec := json.NewDecoder(r)

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrFormat, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return nil, fmt.Errorf("%w: corpus must be a JSON array of messages", entities.ErrFormat)
	}

	msgs := []entities.RawMessage{}
	for i := 0; dec.More(); i++ {
		var m entities.RawMessage
		if err := dec.Decode(&m); err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", entities.ErrFormat, i, err)
		}
		msgs = append(msgs, m)
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrFormat, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: unexpected data after the message array", entities.ErrFormat)
	}
	return msgs, nil
}

func isURL(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}
