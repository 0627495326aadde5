package create

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/turnere/Migrator-Tools/pkg/common"
	"github.com/turnere/Migrator-Tools/pkg/logger"
	"github.com/turnere/Migrator-Tools/pkg/record"
)

// Config represents one create endpoint
type Config struct {
	BaseURL          string
	Path             string
	Token            string
	Method           string
	IDPaths          []string
	DuplicateMarkers []string
	MaxAttempts      int
	BaseDelay        time.Duration
	MaxDelay         time.Duration
}

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = 100 * time.Millisecond
	DefaultMaxDelay    = 5 * time.Second
	maxDetail          = 1024
)

func (c Config) withDefaults() Config {
	if c.Method == "" {
		c.Method = http.MethodPost
	}
	if len(c.IDPaths) == 0 {
		c.IDPaths = []string{"id", "data.id"}
	}
	if len(c.DuplicateMarkers) == 0 {
		c.DuplicateMarkers = []string{"already exists"}
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	return c
}

// Creator posts ready records and classifies each response into an Outcome
type Creator struct {
	client *http.Client
	cfg    Config
	log    *logger.Logger
}

// New creates a creator. A nil client gets a 30 second timeout.
func New(client *http.Client, cfg Config, log *logger.Logger) *Creator {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Creator{client: client, cfg: cfg.withDefaults(), log: log}
}

// Endpoint returns the URL records are posted to
func (c *Creator) Endpoint() string {
	base := strings.TrimRight(c.cfg.BaseURL, "/")
	if c.cfg.Path == "" {
		return base
	}
	return base + "/" + strings.TrimLeft(c.cfg.Path, "/")
}

// Create sends rec. Server errors and transport failures are retried up to
// MaxAttempts; every 4xx is final. Create never returns an error: the
// result is always one of Created, Skipped or Failed.
func (c *Creator) Create(ctx context.Context, rec *record.Record) common.Outcome {
	payload, err := rec.MarshalJSON()
	if err != nil {
		return common.Failed(fmt.Sprintf("failed to encode payload: %v", err))
	}
	url := c.Endpoint()

	var (
		lastDetail string
		lastStatus int
	)
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := c.wait(ctx, attempt-1); err != nil {
				return common.Failed(fmt.Sprintf("interrupted before attempt %d: %v (last error: %s)", attempt, err, lastDetail)).
					WithAttempts(attempt - 1).WithStatus(lastStatus)
			}
		}

		status, body, err := c.send(ctx, url, payload)
		if err != nil {
			if ctx.Err() != nil {
				return common.Failed(fmt.Sprintf("request interrupted: %v", ctx.Err())).WithAttempts(attempt)
			}
			lastDetail = fmt.Sprintf("transport error: %v", err)
			lastStatus = 0
			c.log.WithFields(logrus.Fields{"url": url, "attempt": attempt}).Warnf("Create request failed: %v", err)
			continue
		}

		fields := logrus.Fields{"url": url, "attempt": attempt, "response_status": status}
		switch {
		case status >= 200 && status < 300:
			created, _ := record.DecodeRecord(body)
			return common.Created(extractID(created, c.cfg.IDPaths)).
				WithAttempts(attempt).WithStatus(status).WithBody(created)

		case status == http.StatusConflict || (status >= 400 && status < 500 && c.isDuplicate(body)):
			c.log.WithFields(fields).Debug("Resource already exists in destination")
			return common.Skipped(common.ReasonDuplicate).WithAttempts(attempt).WithStatus(status)

		case status == http.StatusBadRequest:
			detail := ParseErrorDetail(body)
			c.log.WithFields(fields).WithField("response_body", truncate(string(body))).Debug("Create rejected")
			return common.Failed(detail).WithAttempts(attempt).WithStatus(status)

		case status >= 400 && status < 500:
			return common.Failed(fmt.Sprintf("status %d: %s", status, truncate(string(body)))).
				WithAttempts(attempt).WithStatus(status)

		case status >= 500:
			lastDetail = fmt.Sprintf("status %d: %s", status, truncate(string(body)))
			lastStatus = status
			c.log.WithFields(fields).Warn("Destination returned a server error, will retry")

		default:
			return common.Failed(fmt.Sprintf("unexpected status %d", status)).WithAttempts(attempt).WithStatus(status)
		}
	}

	return common.Failed(fmt.Sprintf("giving up after %d attempts: %s", c.cfg.MaxAttempts, lastDetail)).
		WithAttempts(c.cfg.MaxAttempts).WithStatus(lastStatus)
}

func (c *Creator) send(ctx context.Context, url string, payload []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, c.cfg.Method, url, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("error reading response body: %w", err)
	}
	return resp.StatusCode, body, nil
}

// wait sleeps BaseDelay * 2^(n-1), capped at MaxDelay
func (c *Creator) wait(ctx context.Context, n int) error {
	delay := c.cfg.BaseDelay
	for i := 1; i < n && delay < c.cfg.MaxDelay; i++ {
		delay *= 2
	}
	if delay > c.cfg.MaxDelay {
		delay = c.cfg.MaxDelay
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Creator) isDuplicate(body []byte) bool {
	lower := strings.ToLower(string(body))
	for _, m := range c.cfg.DuplicateMarkers {
		if m != "" && strings.Contains(lower, strings.ToLower(m)) {
			return true
		}
	}
	return false
}

func extractID(rec *record.Record, paths []string) string {
	if rec == nil {
		return ""
	}
	for _, p := range paths {
		if id := rec.PathString(p, ""); id != "" {
			return id
		}
	}
	return ""
}

// ParseErrorDetail renders a {message, category, errors[].message} body.
// Anything else is returned as text.
func ParseErrorDetail(body []byte) string {
	rec, err := record.DecodeRecord(body)
	if err != nil {
		return truncate(strings.TrimSpace(string(body)))
	}

	var parts []string
	if category := rec.GetString("category", ""); category != "" {
		parts = append(parts, category)
	}
	if msg := rec.GetString("message", ""); msg != "" {
		parts = append(parts, msg)
	}
	detail := strings.Join(parts, ": ")

	var nested []string
	for _, e := range rec.GetList("errors") {
		if er, ok := e.(*record.Record); ok {
			if m := er.GetString("message", ""); m != "" {
				nested = append(nested, m)
			}
		}
	}
	if len(nested) > 0 {
		detail = strings.TrimSpace(detail + " (" + strings.Join(nested, "; ") + ")")
	}
	if detail == "" {
		return truncate(rec.String())
	}
	return detail
}

func truncate(s string) string {
	return common.Truncate(s, maxDetail)
}
