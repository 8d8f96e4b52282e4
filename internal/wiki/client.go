package wiki

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cognicore/korpus/pkg/korpus/internalerr"
)

// WikidataURL is the public Wikidata SPARQL endpoint.
const WikidataURL = "https://query.wikidata.org/sparql"

const defaultUserAgent = "korpus/1.0 (corpus preparation)"

// Client queries a SPARQL endpoint for article titles and fetches raw
// wikitext from a MediaWiki site.
type Client struct {
	Endpoint  string // SPARQL endpoint, WikidataURL when empty
	Site      string // MediaWiki base, e.g. https://en.wikipedia.org
	UserAgent string

	// Retries is the number of extra attempts after a transport error or a
	// 429/5xx response.
	Retries int
	Backoff time.Duration

	HTTPClient *http.Client
}

// Value is one cell of a SPARQL JSON result.
type Value struct {
	Type  string `json:"type"`
	Value string `json:"value"`
	Lang  string `json:"xml:lang,omitempty"`
}

// Binding maps variable names to values for one result row.
type Binding map[string]Value

type sparqlResponse struct {
	Head struct {
		Vars []string `json:"vars"`
	} `json:"head"`
	Results struct {
		Bindings []Binding `json:"bindings"`
	} `json:"results"`
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("wiki: %s returned HTTP %d", e.URL, e.Code)
}

func (e *StatusError) retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// Query runs a SPARQL SELECT and returns its bindings.
func (c *Client) Query(ctx context.Context, query string) ([]Binding, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("wiki: empty SPARQL query")
	}
	endpoint := c.Endpoint
	if endpoint == "" {
		endpoint = WikidataURL
	}
	form := url.Values{"query": {query}, "format": {"json"}}

	body, err := c.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/sparql-results+json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	var payload sparqlResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("wiki: decode SPARQL response: %w", err)
	}
	return payload.Results.Bindings, nil
}

// Labels extracts the values of variable name from bindings, skipping rows
// where it is unbound or empty.
func Labels(bindings []Binding, name string) []string {
	out := make([]string, 0, len(bindings))
	for _, b := range bindings {
		if v, ok := b[name]; ok && v.Value != "" {
			out = append(out, v.Value)
		}
	}
	return out
}

// PageText fetches the raw wikitext of title. A missing page is
// internalerr.ErrNotFound.
func (c *Client) PageText(ctx context.Context, title string) (string, error) {
	if c.Site == "" {
		return "", fmt.Errorf("wiki: site required")
	}
	u := strings.TrimRight(c.Site, "/") + "/w/index.php?" + url.Values{
		"title":  {title},
		"action": {"raw"},
	}.Encode()

	body, err := c.do(ctx, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	})
	if err != nil {
		if se, ok := err.(*StatusError); ok && se.Code == http.StatusNotFound {
			return "", fmt.Errorf("wiki: page %q: %w", title, internalerr.ErrNotFound)
		}
		return "", err
	}
	return string(body), nil
}

func (c *Client) do(ctx context.Context, newReq func() (*http.Request, error)) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.Retries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, c.Backoff*time.Duration(attempt)); err != nil {
				return nil, err
			}
		}

		req, err := newReq()
		if err != nil {
			return nil, err
		}
		ua := c.UserAgent
		if ua == "" {
			ua = defaultUserAgent
		}
		req.Header.Set("User-Agent", ua)

		body, err := c.send(req)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if se, ok := err.(*StatusError); ok && !se.retryable() {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func (c *Client) send(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{URL: req.URL.String(), Code: resp.StatusCode}
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
