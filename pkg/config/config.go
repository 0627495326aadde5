package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/turnere/Migrator-Tools/pkg/common"
	"github.com/turnere/Migrator-Tools/pkg/credential"
	"github.com/turnere/Migrator-Tools/pkg/sink"
	"github.com/turnere/Migrator-Tools/pkg/transform"
)

// Run modes
const (
	ModeExport    = "export"    // fetch and dump
	ModeImport    = "import"    // read an input file, transform and create
	ModeMigrate   = "migrate"   // fetch, transform and create
	ModeTransform = "transform" // read an input file, transform and dump
)

// Config represents the main configuration structure
type Config struct {
	// Logging
	LogLevel  string `json:"logLevel" yaml:"logLevel"`   // debug, info, warn, error
	LogFormat string `json:"logFormat" yaml:"logFormat"` // text or json
	LogFile   string `json:"logFile" yaml:"logFile"`     // optional file tee'd with stdout

	// Files loaded with godotenv before tokens are resolved (default ".env")
	DotEnv []string `json:"dotEnv" yaml:"dotEnv"`

	Mode               string `json:"mode" yaml:"mode"`                             // default mode for every resource
	DryRun             bool   `json:"dryRun" yaml:"dryRun"`                         // transform but never POST
	HTTPTimeoutSeconds int    `json:"httpTimeoutSeconds" yaml:"httpTimeoutSeconds"` // per request
	OutputDir          string `json:"outputDir" yaml:"outputDir"`                   // default location of dumps and summaries

	// Named API accounts referenced by resources
	Accounts map[string]Account `json:"accounts" yaml:"accounts"`

	// Resource types to process, in order
	Resources []Resource `json:"resources" yaml:"resources"`

	// Retry configuration for the create stage
	RetryConfig RetryConfig `json:"retryConfig" yaml:"retryConfig"`

	// Run summaries stored outside the filesystem
	Summary SummaryTargets `json:"summary" yaml:"summary"`
}

// Account represents one API account (a HubSpot portal or SalesLoft team)
type Account struct {
	BaseURL string `json:"baseUrl" yaml:"baseUrl"`

	credential.Config `yaml:",inline"`
}

// RetryConfig represents retry configuration
type RetryConfig struct {
	MaxAttempts int `json:"maxAttempts" yaml:"maxAttempts"` // total requests per record, including the first
	BaseDelayMs int `json:"baseDelayMs" yaml:"baseDelayMs"` // delay before the first retry
	MaxDelayMs  int `json:"maxDelayMs" yaml:"maxDelayMs"`   // cap for the doubling delay
}

// BaseDelay returns BaseDelayMs as a duration
func (r RetryConfig) BaseDelay() time.Duration {
	return time.Duration(r.BaseDelayMs) * time.Millisecond
}

// MaxDelay returns MaxDelayMs as a duration
func (r RetryConfig) MaxDelay() time.Duration {
	return time.Duration(r.MaxDelayMs) * time.Millisecond
}

// SummaryTargets configures the optional database writers
type SummaryTargets struct {
	MongoDB       *sink.MongoConfig         `json:"mongodb,omitempty" yaml:"mongodb,omitempty"`
	Elasticsearch *sink.ElasticsearchConfig `json:"elasticsearch,omitempty" yaml:"elasticsearch,omitempty"`
}

// Resource represents one resource type to move between accounts
type Resource struct {
	Name   string `json:"name" yaml:"name"`     // unique, matched by -resource globs
	Kind   string `json:"kind" yaml:"kind"`     // transform profile, e.g. "form"
	Mode   string `json:"mode" yaml:"mode"`     // overrides Config.Mode
	Source string `json:"source" yaml:"source"` // account to read from
	Dest   string `json:"dest" yaml:"dest"`     // account to create in

	Fetch  FetchConfig  `json:"fetch" yaml:"fetch"`
	Create CreateConfig `json:"create" yaml:"create"`

	// Ids fetched one by one instead of paging the collection
	IDs     []string `json:"ids" yaml:"ids"`
	IDsFile string   `json:"idsFile" yaml:"idsFile"` // CSV with one id per row, read when IDs is empty

	Input   string   `json:"input" yaml:"input"`     // JSON records for import and transform modes
	Export  string   `json:"export" yaml:"export"`   // JSON dump path
	CSV     string   `json:"csv" yaml:"csv"`         // optional CSV dump path
	Excel   string   `json:"excel" yaml:"excel"`     // optional Excel dump path
	Columns []string `json:"columns" yaml:"columns"` // dump columns, default every scalar key

	Mapping common.MappingConfig `json:"mapping" yaml:"mapping"`

	SummaryJSON   string `json:"summaryJson" yaml:"summaryJson"`
	SummaryCSV    string `json:"summaryCsv" yaml:"summaryCsv"`
	SummaryExcel  string `json:"summaryExcel" yaml:"summaryExcel"`
	CreatedOutput string `json:"createdOutput" yaml:"createdOutput"` // response bodies of created resources
}

// FetchesByID reports whether the resource reads a fixed id list
func (r Resource) FetchesByID() bool {
	return len(r.IDs) > 0 || r.IDsFile != ""
}

// FetchConfig represents the source endpoint of a resource
type FetchConfig struct {
	Path          string            `json:"path" yaml:"path"`
	IDPath        string            `json:"idPath" yaml:"idPath"`         // per-id endpoint, e.g. "/marketing-emails/v1/emails"
	RecordPath    string            `json:"recordPath" yaml:"recordPath"` // wrapper key of per-id responses
	Style         string            `json:"style" yaml:"style"`           // link, page or none
	PageSize      int               `json:"pageSize" yaml:"pageSize"`
	PageSizeParam string            `json:"pageSizeParam" yaml:"pageSizeParam"`
	MaxRecords    int               `json:"maxRecords" yaml:"maxRecords"`
	ResultsPath   string            `json:"resultsPath" yaml:"resultsPath"`
	NextLinkPath  string            `json:"nextLinkPath" yaml:"nextLinkPath"`
	NextAfterPath string            `json:"nextAfterPath" yaml:"nextAfterPath"`
	AfterParam    string            `json:"afterParam" yaml:"afterParam"`
	NextPagePath  string            `json:"nextPagePath" yaml:"nextPagePath"`
	PageParam     string            `json:"pageParam" yaml:"pageParam"`
	Query         map[string]string `json:"query" yaml:"query"`
	Enrich        []EnrichConfig    `json:"enrich" yaml:"enrich"`
}

// EnrichConfig joins a per-id lookup onto every fetched record
type EnrichConfig struct {
	Field      string            `json:"field" yaml:"field"`           // dotted path to the id or id list
	IDPath     string            `json:"idPath" yaml:"idPath"`         // lookup endpoint, the id is appended
	RecordPath string            `json:"recordPath" yaml:"recordPath"` // wrapper key of the response
	As         string            `json:"as" yaml:"as"`                 // key the result is stored under
	Query      map[string]string `json:"query" yaml:"query"`
}

// CreateConfig represents the destination endpoint of a resource
type CreateConfig struct {
	Path             string   `json:"path" yaml:"path"`
	Method           string   `json:"method" yaml:"method"`
	IDPaths          []string `json:"idPaths" yaml:"idPaths"`
	DuplicateMarkers []string `json:"duplicateMarkers" yaml:"duplicateMarkers"`
}

// EffectiveMode returns the resource mode, falling back to the run mode
func (r Resource) EffectiveMode(runMode string) string {
	if r.Mode != "" {
		return r.Mode
	}
	return runMode
}

// Fetches reports whether the mode reads from the source API
func Fetches(mode string) bool { return mode == ModeExport || mode == ModeMigrate }

// Creates reports whether the mode writes to the destination API
func Creates(mode string) bool { return mode == ModeImport || mode == ModeMigrate }

// LoadConfig loads and validates the configuration from a JSON or YAML file
func LoadConfig(configPath string) (*Config, error) {
	config, err := ReadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// ReadConfig parses the file and fills in defaults without validating, so
// environment and command-line overrides can be applied first
func ReadConfig(configPath string) (*Config, error) {
	// Set default config path if not provided
	if configPath == "" {
		configPath = "migrate.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		err = json.Unmarshal(data, &config)
	}
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	config.setDefaults()
	return &config, nil
}

func (c *Config) setDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
	if c.Mode == "" {
		c.Mode = ModeMigrate
	}
	if c.HTTPTimeoutSeconds <= 0 {
		c.HTTPTimeoutSeconds = 30
	}
	if c.OutputDir == "" {
		c.OutputDir = "output"
	}

	if c.RetryConfig.MaxAttempts <= 0 {
		c.RetryConfig.MaxAttempts = 3
	}
	if c.RetryConfig.BaseDelayMs <= 0 {
		c.RetryConfig.BaseDelayMs = 100 // Default to 100ms base delay
	}
	if c.RetryConfig.MaxDelayMs <= 0 {
		c.RetryConfig.MaxDelayMs = 5000 // Default to 5s max delay
	}

	for i := range c.Resources {
		r := &c.Resources[i]
		if r.Export == "" {
			r.Export = filepath.Join(c.OutputDir, r.Name+".json")
		}
		if r.SummaryJSON == "" {
			r.SummaryJSON = filepath.Join(c.OutputDir, r.Name+"-summary.json")
		}
	}
}

// HTTPTimeout returns the per-request timeout
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if !validMode(c.Mode) {
		return fmt.Errorf("invalid mode %q: must be 'export', 'import', 'migrate' or 'transform'", c.Mode)
	}

	for name, acct := range c.Accounts {
		if acct.BaseURL == "" {
			return fmt.Errorf("baseUrl is required for account %s", name)
		}
		if err := acct.Config.Validate(); err != nil {
			return fmt.Errorf("account %s: %w", name, err)
		}
	}

	if len(c.Resources) == 0 {
		return fmt.Errorf("at least one resource is required")
	}

	seen := make(map[string]bool, len(c.Resources))
	for i, r := range c.Resources {
		if r.Name == "" {
			return fmt.Errorf("name is required for resource at index %d", i)
		}
		if seen[r.Name] {
			return fmt.Errorf("duplicate resource name %s", r.Name)
		}
		seen[r.Name] = true

		if err := c.validateResource(r); err != nil {
			return fmt.Errorf("resource %s: %w", r.Name, err)
		}
	}

	if m := c.Summary.MongoDB; m != nil {
		if m.ConnectionString == "" {
			return fmt.Errorf("MongoDB connection string is required")
		}
		if m.Database == "" {
			return fmt.Errorf("MongoDB database name is required")
		}
	}

	if es := c.Summary.Elasticsearch; es != nil {
		if len(es.Addresses) == 0 {
			return fmt.Errorf("at least one Elasticsearch address is required")
		}
		if es.TLS && es.CACertPath != "" {
			if _, err := os.Stat(es.CACertPath); os.IsNotExist(err) {
				return fmt.Errorf("CA certificate file not found at path: %s", es.CACertPath)
			}
		}
	}

	return nil
}

func (c *Config) validateResource(r Resource) error {
	if _, err := transform.ProfileFor(r.Kind); err != nil {
		return err
	}

	mode := r.EffectiveMode(c.Mode)
	if !validMode(mode) {
		return fmt.Errorf("invalid mode %q", mode)
	}

	if Fetches(mode) {
		if err := c.checkAccount(r.Source, "source"); err != nil {
			return err
		}
		if r.FetchesByID() {
			if r.Fetch.IDPath == "" {
				return fmt.Errorf("fetch.idPath is required when ids are listed")
			}
		} else if r.Fetch.Path == "" {
			return fmt.Errorf("fetch.path is required")
		}
		switch r.Fetch.Style {
		case "", "link", "page", "none":
		default:
			return fmt.Errorf("invalid fetch style %q: must be 'link', 'page' or 'none'", r.Fetch.Style)
		}
		for i, e := range r.Fetch.Enrich {
			if e.Field == "" || e.IDPath == "" {
				return fmt.Errorf("fetch.enrich[%d]: field and idPath are required", i)
			}
		}
	} else if r.Input == "" {
		return fmt.Errorf("input file is required in %s mode", mode)
	}

	if Creates(mode) {
		if err := c.checkAccount(r.Dest, "dest"); err != nil {
			return err
		}
		if r.Create.Path == "" {
			return fmt.Errorf("create.path is required")
		}
	}
	return nil
}

func (c *Config) checkAccount(name, role string) error {
	if name == "" {
		return fmt.Errorf("%s account is required", role)
	}
	if _, ok := c.Accounts[name]; !ok {
		return fmt.Errorf("%s account %s is not defined", role, name)
	}
	return nil
}

func validMode(mode string) bool {
	switch mode {
	case ModeExport, ModeImport, ModeMigrate, ModeTransform:
		return true
	}
	return false
}

// SelectResources returns the resources whose names match any of the
// comma-separated glob patterns, in config order. An empty selector
// matches everything.
func (c *Config) SelectResources(selector string) ([]Resource, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return c.Resources, nil
	}

	var patterns []string
	for _, p := range strings.Split(selector, ",") {
		if p = strings.TrimSpace(p); p != "" {
			if _, err := path.Match(p, ""); err != nil {
				return nil, fmt.Errorf("invalid resource pattern %q: %w", p, err)
			}
			patterns = append(patterns, p)
		}
	}

	var out []Resource
	for _, r := range c.Resources {
		for _, p := range patterns {
			if ok, _ := path.Match(p, r.Name); ok {
				out = append(out, r)
				break
			}
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no resource matches %q", selector)
	}
	return out, nil
}
