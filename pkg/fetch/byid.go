package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/turnere/Migrator-Tools/pkg/record"
)

// IDFetchConfig represents an endpoint that returns one record per id,
// such as /marketing-emails/v1/emails/{id}.
type IDFetchConfig struct {
	BaseURL    string
	Path       string
	Token      string
	RecordPath string // optional wrapper key, e.g. "data"
	Query      map[string]string
}

// ByID fetches each id in turn. A failing id is reported in the returned
// errors and the remaining ids are still fetched; cancellation stops the loop.
func ByID(ctx context.Context, client *http.Client, cfg IDFetchConfig, ids []string) ([]*record.Record, []error) {
	client = defaultClient(client)

	var (
		out  []*record.Record
		errs []error
	)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		rec, err := fetchOne(ctx, client, cfg, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, rec)
	}
	return out, errs
}

func fetchOne(ctx context.Context, client *http.Client, cfg IDFetchConfig, id string) (*record.Record, error) {
	u, err := idURL(cfg, id)
	if err != nil {
		return nil, err
	}
	v, err := getJSON(ctx, client, u, cfg.Token)
	if err != nil {
		return nil, err
	}
	rec, ok := v.(*record.Record)
	if ok && cfg.RecordPath != "" {
		rec = rec.GetRecord(cfg.RecordPath)
		ok = rec != nil
	}
	if !ok {
		return nil, &FetchError{URL: u, Err: fmt.Errorf("response for id %s is not an object", id)}
	}
	return rec, nil
}

func idURL(cfg IDFetchConfig, id string) (string, error) {
	if cfg.BaseURL == "" {
		return "", &FetchError{Err: fmt.Errorf("base URL is required")}
	}
	raw := strings.TrimRight(cfg.BaseURL, "/")
	if p := strings.Trim(cfg.Path, "/"); p != "" {
		raw += "/" + p
	}
	raw += "/" + url.PathEscape(id)
	u, err := url.Parse(raw)
	if err != nil {
		return "", &FetchError{URL: raw, Err: err}
	}
	if len(cfg.Query) > 0 {
		q := u.Query()
		for k, v := range cfg.Query {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
