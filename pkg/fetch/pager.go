package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/turnere/Migrator-Tools/pkg/record"
)

// Style selects how the next page is located
type Style string

const (
	// StyleLink follows a next link (or after token) from the response body
	StyleLink Style = "link"
	// StylePage increments a page number until next_page is null
	StylePage Style = "page"
	// StyleNone issues a single request
	StyleNone Style = "none"
)

// PagerConfig represents one paginated collection endpoint
type PagerConfig struct {
	BaseURL       string
	Path          string
	Token         string
	PageSize      int
	PageSizeParam string
	MaxRecords    int // 0 means unbounded
	Style         Style
	ResultsPath   string
	NextLinkPath  string
	NextAfterPath string
	AfterParam    string
	NextPagePath  string
	PageParam     string
	Query         map[string]string
}

const DefaultPageSize = 50

func (c PagerConfig) withDefaults() PagerConfig {
	if c.Style == "" {
		c.Style = StyleLink
	}
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.PageSizeParam == "" {
		if c.Style == StylePage {
			c.PageSizeParam = "per_page"
		} else {
			c.PageSizeParam = "limit"
		}
	}
	if c.ResultsPath == "" {
		c.ResultsPath = "results"
	}
	if c.NextLinkPath == "" {
		c.NextLinkPath = "paging.next.link"
	}
	if c.NextAfterPath == "" {
		c.NextAfterPath = "paging.next.after"
	}
	if c.AfterParam == "" {
		c.AfterParam = "after"
	}
	if c.NextPagePath == "" {
		c.NextPagePath = "metadata.paging.next_page"
	}
	if c.PageParam == "" {
		c.PageParam = "page"
	}
	return c
}

// Pager lazily walks a paginated collection. Next returns (nil, nil) once
// the collection is exhausted or MaxRecords has been reached.
type Pager struct {
	client *http.Client
	cfg    PagerConfig

	buffer  []*record.Record
	nextURL string
	started bool
	done    bool
	yielded int
	pages   int
}

// NewPager creates a pager. A nil client gets a 30 second timeout.
func NewPager(client *http.Client, cfg PagerConfig) *Pager {
	return &Pager{
		client: defaultClient(client),
		cfg:    cfg.withDefaults(),
	}
}

// Reset restarts the sequence from the first page
func (p *Pager) Reset() {
	p.buffer = nil
	p.nextURL = ""
	p.started = false
	p.done = false
	p.yielded = 0
	p.pages = 0
}

// Pages returns the number of pages requested so far
func (p *Pager) Pages() int {
	return p.pages
}

// Next returns the next record
func (p *Pager) Next(ctx context.Context) (*record.Record, error) {
	for len(p.buffer) == 0 {
		if p.done || p.limitReached() {
			p.done = true
			return nil, nil
		}
		if err := p.fetchPage(ctx); err != nil {
			p.done = true
			p.buffer = nil
			return nil, err
		}
	}

	rec := p.buffer[0]
	p.buffer = p.buffer[1:]
	p.yielded++
	if p.limitReached() {
		p.buffer = nil
		p.done = true
	}
	return rec, nil
}

// All drains the pager. Records read before a failure are returned with
// the error.
func (p *Pager) All(ctx context.Context) ([]*record.Record, error) {
	var out []*record.Record
	for {
		rec, err := p.Next(ctx)
		if err != nil {
			return out, err
		}
		if rec == nil {
			return out, nil
		}
		out = append(out, rec)
	}
}

func (p *Pager) limitReached() bool {
	return p.cfg.MaxRecords > 0 && p.yielded >= p.cfg.MaxRecords
}

func (p *Pager) fetchPage(ctx context.Context) error {
	current := p.nextURL
	if !p.started {
		first, err := p.firstURL()
		if err != nil {
			return err
		}
		current = first
		p.started = true
	}

	v, err := getJSON(ctx, p.client, current, p.cfg.Token)
	if err != nil {
		return err
	}
	p.pages++

	var body *record.Record
	switch t := v.(type) {
	case []any:
		p.buffer = record.Records(t)
	case *record.Record:
		body = t
		list, ok := t.Path(p.cfg.ResultsPath)
		if !ok {
			// single-object endpoints
			if p.cfg.Style == StyleNone {
				p.buffer = []*record.Record{t}
			}
			break
		}
		items, isList := list.([]any)
		if !isList {
			return &FetchError{URL: current, Err: fmt.Errorf("%s is not an array", p.cfg.ResultsPath)}
		}
		p.buffer = record.Records(items)
	default:
		return &FetchError{URL: current, Err: fmt.Errorf("unexpected JSON value %T", v)}
	}

	next, err := p.nextFrom(body, current)
	if err != nil {
		return err
	}
	if next == "" || next == current {
		p.done = true
	}
	p.nextURL = next
	return nil
}

func (p *Pager) firstURL() (string, error) {
	if p.cfg.BaseURL == "" {
		return "", &FetchError{Err: fmt.Errorf("base URL is required")}
	}
	raw := strings.TrimRight(p.cfg.BaseURL, "/")
	if p.cfg.Path != "" {
		raw += "/" + strings.TrimLeft(p.cfg.Path, "/")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", &FetchError{URL: raw, Err: err}
	}
	q := u.Query()
	for k, v := range p.cfg.Query {
		q.Set(k, v)
	}
	if p.cfg.Style != StyleNone {
		q.Set(p.cfg.PageSizeParam, strconv.Itoa(p.cfg.PageSize))
	}
	if p.cfg.Style == StylePage && q.Get(p.cfg.PageParam) == "" {
		q.Set(p.cfg.PageParam, "1")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// nextFrom works out the URL of the following page, or "" at the end
func (p *Pager) nextFrom(body *record.Record, current string) (string, error) {
	if body == nil {
		return "", nil
	}
	switch p.cfg.Style {
	case StyleLink:
		if link := body.PathString(p.cfg.NextLinkPath, ""); link != "" {
			return p.resolveLink(link, current)
		}
		if after := body.PathString(p.cfg.NextAfterPath, ""); after != "" {
			return withParam(current, p.cfg.AfterParam, after)
		}
		return "", nil
	case StylePage:
		v, ok := body.Path(p.cfg.NextPagePath)
		if !ok || v == nil {
			return "", nil
		}
		var page string
		switch n := v.(type) {
		case string:
			page = n
		default:
			page = fmt.Sprint(n)
		}
		if page == "" {
			return "", nil
		}
		return withParam(current, p.cfg.PageParam, page)
	default:
		return "", nil
	}
}

// resolveLink turns a next link into an absolute URL. Links starting with
// "/" are appended to the base URL; other relative links resolve against
// the current page.
func (p *Pager) resolveLink(link, current string) (string, error) {
	ref, err := url.Parse(link)
	if err != nil {
		return "", &FetchError{URL: current, Err: fmt.Errorf("invalid next link %q: %w", link, err)}
	}

	var resolved *url.URL
	switch {
	case ref.IsAbs():
		resolved = ref
	case strings.HasPrefix(link, "/"):
		resolved, err = url.Parse(strings.TrimRight(p.cfg.BaseURL, "/") + link)
		if err != nil {
			return "", &FetchError{URL: current, Err: err}
		}
	default:
		base, err := url.Parse(current)
		if err != nil {
			return "", &FetchError{URL: current, Err: err}
		}
		resolved = base.ResolveReference(ref)
	}

	q := resolved.Query()
	if q.Get(p.cfg.PageSizeParam) == "" {
		q.Set(p.cfg.PageSizeParam, strconv.Itoa(p.cfg.PageSize))
		resolved.RawQuery = q.Encode()
	}
	return resolved.String(), nil
}

func withParam(raw, key, value string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", &FetchError{URL: raw, Err: err}
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
