package feed

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/cognicore/korpus/pkg/korpus/internalerr"
)

// maxLine bounds a single JSONL record.
const maxLine = 16 << 20

// Item is one scraped document
type Item struct {
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Outlet      string    `json:"outlet"`
	PublishedAt time.Time `json:"published_at"`
	Body        string    `json:"text"`
}

// LineError records a JSONL line that could not be decoded
type LineError struct {
	Line int
	Err  error
}

func (e LineError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }

// LoadFromJSONL loads items from a JSONL file. Malformed lines and items
// without text are skipped and reported in the second return value.
func LoadFromJSONL(path string) ([]Item, []LineError, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", internalerr.ErrMissingInput, path)
		}
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	items, skipped, err := Read(f)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	return items, skipped, nil
}

// Read decodes JSONL items from r
func Read(r io.Reader) ([]Item, []LineError, error) {
	var items []Item
	var skipped []LineError

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}

		var item Item
		if err := json.Unmarshal([]byte(text), &item); err != nil {
			skipped = append(skipped, LineError{Line: line, Err: err})
			continue
		}
		if strings.TrimSpace(item.Body) == "" {
			skipped = append(skipped, LineError{Line: line, Err: errors.New("empty text")})
			continue
		}
		items = append(items, item)
	}
	if err := sc.Err(); err != nil {
		return nil, nil, err
	}
	return items, skipped, nil
}
