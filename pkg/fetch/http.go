package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/turnere/Migrator-Tools/pkg/common"
	"github.com/turnere/Migrator-Tools/pkg/record"
)

// DefaultTimeout is used when no client is supplied
const DefaultTimeout = 30 * time.Second

const maxErrorBody = 512

// FetchError reports a failed GET: a non-2xx status, a transport failure
// (Status 0) or a body that is not JSON.
type FetchError struct {
	Status int
	Body   string
	URL    string
	Err    error
}

func (e *FetchError) Error() string {
	body := common.Truncate(e.Body, maxErrorBody)
	switch {
	case e.Err != nil && e.Status == 0:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.Status, e.Err)
	default:
		return fmt.Sprintf("fetch %s: status %d: %s", e.URL, e.Status, body)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func defaultClient(client *http.Client) *http.Client {
	if client != nil {
		return client
	}
	return &http.Client{Timeout: DefaultTimeout}
}

// getJSON issues one authorized GET and decodes the body
func getJSON(ctx context.Context, client *http.Client, url, token string) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Status: resp.StatusCode, URL: url, Err: fmt.Errorf("error reading body: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{Status: resp.StatusCode, Body: string(body), URL: url}
	}

	v, err := record.Decode(body)
	if err != nil {
		return nil, &FetchError{Status: resp.StatusCode, Body: string(body), URL: url, Err: fmt.Errorf("unparsable body: %w", err)}
	}
	return v, nil
}
