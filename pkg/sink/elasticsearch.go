package sink

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"

	"github.com/turnere/Migrator-Tools/pkg/logger"
)

// ElasticsearchConfig represents the Elasticsearch summary target
type ElasticsearchConfig struct {
	Addresses  []string `json:"addresses" yaml:"addresses"`
	Username   string   `json:"username" yaml:"username"`
	Password   string   `json:"password" yaml:"password"`
	APIKey     string   `json:"apiKey" yaml:"apiKey"`
	Index      string   `json:"index" yaml:"index"`
	TLS        bool     `json:"tls" yaml:"tls"`
	CACertPath string   `json:"caCertPath" yaml:"caCertPath"`
	SkipVerify bool     `json:"skipVerify" yaml:"skipVerify"`
}

// ElasticsearchWriter indexes one document per run under the run id
type ElasticsearchWriter struct {
	client *elasticsearch.Client
	index  string
	log    *logger.Logger
}

// NewElasticsearchWriter creates the client and pings the cluster
func NewElasticsearchWriter(cfg ElasticsearchConfig, log *logger.Logger) (*ElasticsearchWriter, error) {
	if cfg.Index == "" {
		cfg.Index = "migration-runs"
	}

	esCfg := elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		APIKey:    cfg.APIKey,
	}

	transport := &http.Transport{
		MaxIdleConnsPerHost:   2,
		ResponseHeaderTimeout: 60 * time.Second,
		DialContext:           (&net.Dialer{Timeout: 30 * time.Second}).DialContext,
	}
	if cfg.TLS {
		transport.TLSClientConfig = &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: cfg.SkipVerify,
		}
		if cfg.CACertPath != "" {
			caCert, err := os.ReadFile(cfg.CACertPath)
			if err != nil {
				return nil, fmt.Errorf("failed to read CA certificate: %w", err)
			}
			esCfg.CACert = caCert
		}
	}
	esCfg.Transport = transport

	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	res, err := client.Ping()
	if err != nil {
		return nil, fmt.Errorf("failed to ping Elasticsearch: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("failed to ping Elasticsearch: %s", res.String())
	}
	log.Infof("Writing run summaries to Elasticsearch index %s", cfg.Index)

	return &ElasticsearchWriter{client: client, index: cfg.Index, log: log}, nil
}

func (w *ElasticsearchWriter) Name() string { return "elasticsearch" }

func (w *ElasticsearchWriter) Write(ctx context.Context, s Summary) error {
	body, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      w.index,
		DocumentID: url.PathEscape(s.DocumentID()),
		Body:       bytes.NewReader(body),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, w.client)
	if err != nil {
		return fmt.Errorf("failed to index summary: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("failed to index summary: %s", res.String())
	}
	return nil
}
