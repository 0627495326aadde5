package migration

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/turnere/Migrator-Tools/pkg/common"
	"github.com/turnere/Migrator-Tools/pkg/config"
	"github.com/turnere/Migrator-Tools/pkg/create"
	"github.com/turnere/Migrator-Tools/pkg/credential"
	"github.com/turnere/Migrator-Tools/pkg/dump"
	"github.com/turnere/Migrator-Tools/pkg/fetch"
	"github.com/turnere/Migrator-Tools/pkg/logger"
	"github.com/turnere/Migrator-Tools/pkg/progress"
	"github.com/turnere/Migrator-Tools/pkg/record"
	"github.com/turnere/Migrator-Tools/pkg/sink"
	"github.com/turnere/Migrator-Tools/pkg/transform"
)

// Options narrows a run to part of the configuration
type Options struct {
	Resources string   // comma-separated glob patterns, empty for all
	IDs       []string // fetch these ids instead of paging
	RunID     string   // shared by every resource summary; generated when empty
}

// Migrator drives the fetch, transform, create and summarize stages for
// each selected resource in turn
type Migrator struct {
	config   *config.Config
	log      *logger.Logger
	client   *http.Client
	progress progress.Reporter

	runID     string
	tokens    map[string]string
	plans     []*plan
	writers   []sink.Writer
	closers   []func(context.Context) error
	summaries []sink.Summary
}

// plan is a resource with everything resolved at setup time
type plan struct {
	res         config.Resource
	mode        string
	profile     transform.Profile
	transformer *transform.Transformer
	input       []*record.Record
}

// NewMigrator creates a new Migrator
func NewMigrator(cfg *config.Config, log *logger.Logger) *Migrator {
	return &Migrator{
		config:   cfg,
		log:      log,
		client:   &http.Client{Timeout: cfg.HTTPTimeout()},
		progress: progress.Noop{},
		tokens:   make(map[string]string),
	}
}

// SetHTTPClient replaces the client used for every API call
func (m *Migrator) SetHTTPClient(c *http.Client) {
	m.client = c
}

// SetProgress installs a reporter for the create stage
func (m *Migrator) SetProgress(r progress.Reporter) {
	m.progress = r
}

// Summaries returns the summary of every resource run so far
func (m *Migrator) Summaries() []sink.Summary {
	return m.summaries
}

// RunID returns the identifier shared by every summary of this run
func (m *Migrator) RunID() string {
	return m.runID
}

// Prepare resolves credentials, mapping tables, input files and summary
// writers. Any error here aborts the run before a record is processed.
func (m *Migrator) Prepare(ctx context.Context, opts Options) error {
	if err := credential.LoadDotEnv(m.config.DotEnv...); err != nil {
		return err
	}

	resources, err := m.config.SelectResources(opts.Resources)
	if err != nil {
		return err
	}
	m.runID = opts.RunID
	if m.runID == "" {
		m.runID = uuid.NewString()
	}

	for _, res := range resources {
		mode := res.EffectiveMode(m.config.Mode)
		if len(opts.IDs) > 0 && config.Fetches(mode) {
			if res.Fetch.IDPath == "" {
				return fmt.Errorf("resource %s: fetch.idPath is required to fetch by id", res.Name)
			}
			res.IDs = opts.IDs
		}

		p, err := m.preparePlan(ctx, res, mode)
		if err != nil {
			return fmt.Errorf("resource %s: %w", res.Name, err)
		}
		m.plans = append(m.plans, p)
	}

	return m.openWriters(ctx)
}

func (m *Migrator) preparePlan(ctx context.Context, res config.Resource, mode string) (*plan, error) {
	profile, err := transform.ProfileFor(res.Kind)
	if err != nil {
		return nil, err
	}

	mapping, err := common.LoadMapping(res.Mapping, m.log)
	if err != nil {
		return nil, err
	}
	deny := common.NewDenyList(res.Mapping.ExcludeFields, res.Mapping.ExcludeIDs)

	tr, err := transform.New(profile, deny, mapping)
	if err != nil {
		return nil, err
	}

	if config.Fetches(mode) && len(res.IDs) == 0 && res.IDsFile != "" {
		res.IDs, err = common.LoadIDs(res.IDsFile)
		if err != nil {
			return nil, err
		}
		m.log.Infof("Loaded %d %s ids from %s", len(res.IDs), res.Name, res.IDsFile)
	}

	p := &plan{res: res, mode: mode, profile: profile, transformer: tr}

	if config.Fetches(mode) {
		if _, err := m.token(ctx, res.Source); err != nil {
			return nil, err
		}
	} else {
		p.input, err = dump.ReadRecords(res.Input)
		if err != nil {
			return nil, err
		}
		m.log.Infof("Loaded %d %s records from %s", len(p.input), res.Name, res.Input)
	}

	if config.Creates(mode) && !m.config.DryRun {
		if _, err := m.token(ctx, res.Dest); err != nil {
			return nil, err
		}
	}

	m.log.Debugf("Prepared resource %s (kind=%s, mode=%s, mapping=%d entries)", res.Name, res.Kind, mode, mapping.Len())
	return p, nil
}

// token resolves and caches the bearer token of an account
func (m *Migrator) token(ctx context.Context, account string) (string, error) {
	if tok, ok := m.tokens[account]; ok {
		return tok, nil
	}
	acct, ok := m.config.Accounts[account]
	if !ok {
		return "", fmt.Errorf("account %s is not defined", account)
	}
	tok, err := credential.Resolve(ctx, acct.Config, m.log)
	if err != nil {
		return "", fmt.Errorf("credential for account %s: %w", account, err)
	}
	m.tokens[account] = tok
	return tok, nil
}

func (m *Migrator) openWriters(ctx context.Context) error {
	if cfg := m.config.Summary.MongoDB; cfg != nil {
		w, err := sink.NewMongoWriter(ctx, *cfg, m.log)
		if err != nil {
			return err
		}
		m.writers = append(m.writers, w)
		m.closers = append(m.closers, w.Close)
	}
	if cfg := m.config.Summary.Elasticsearch; cfg != nil {
		w, err := sink.NewElasticsearchWriter(*cfg, m.log)
		if err != nil {
			return err
		}
		m.writers = append(m.writers, w)
	}
	return nil
}

// Close releases the summary writers
func (m *Migrator) Close(ctx context.Context) error {
	var errs []error
	for _, c := range m.closers {
		errs = append(errs, c(ctx))
	}
	m.closers = nil
	return errors.Join(errs...)
}

// Start runs every prepared resource in order. A resource whose fetch fails
// is logged and the run moves on; only cancellation stops it.
func (m *Migrator) Start(ctx context.Context) error {
	if len(m.plans) == 0 {
		return errors.New("nothing to run: Prepare was not called or selected no resources")
	}

	for _, p := range m.plans {
		if err := ctx.Err(); err != nil {
			return err
		}

		m.log.Infof("Processing resource %s (%s)", p.res.Name, p.mode)
		if err := m.run(ctx, p); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			m.log.Errorf("Error processing resource %s: %v", p.res.Name, err)
		}
	}
	return ctx.Err()
}

func (m *Migrator) run(ctx context.Context, p *plan) error {
	records := p.input
	if config.Fetches(p.mode) {
		var err error
		records, err = m.fetch(ctx, p)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.logFetchError(p, err)
		}
		m.log.Infof("Fetched %d %s records", len(records), p.res.Name)
		if err := m.enrich(ctx, p, records); err != nil {
			return err
		}
		if err := m.writeDumps(p.res, records, p.res.Export); err != nil {
			m.log.Errorf("Failed to write %s export: %v", p.res.Name, err)
		}
	}

	switch p.mode {
	case config.ModeExport:
		return nil
	case config.ModeTransform:
		return m.transformOnly(p, records)
	default:
		return m.createAll(ctx, p, records)
	}
}

func (m *Migrator) fetch(ctx context.Context, p *plan) ([]*record.Record, error) {
	acct := m.config.Accounts[p.res.Source]
	token := m.tokens[p.res.Source]
	f := p.res.Fetch

	if len(p.res.IDs) > 0 {
		recs, errs := fetch.ByID(ctx, m.client, fetch.IDFetchConfig{
			BaseURL:    acct.BaseURL,
			Path:       f.IDPath,
			Token:      token,
			RecordPath: f.RecordPath,
			Query:      f.Query,
		}, p.res.IDs)
		for _, err := range errs {
			if ctx.Err() != nil {
				return recs, ctx.Err()
			}
			m.logFetchError(p, err)
		}
		return recs, nil
	}

	pager := fetch.NewPager(m.client, fetch.PagerConfig{
		BaseURL:       acct.BaseURL,
		Path:          f.Path,
		Token:         token,
		PageSize:      f.PageSize,
		PageSizeParam: f.PageSizeParam,
		MaxRecords:    f.MaxRecords,
		Style:         fetch.Style(f.Style),
		ResultsPath:   f.ResultsPath,
		NextLinkPath:  f.NextLinkPath,
		NextAfterPath: f.NextAfterPath,
		AfterParam:    f.AfterParam,
		NextPagePath:  f.NextPagePath,
		PageParam:     f.PageParam,
		Query:         f.Query,
	})
	recs, err := pager.All(ctx)
	m.log.Debugf("Read %d pages of %s", pager.Pages(), p.res.Name)
	return recs, err
}

// enrich runs the follow-up lookups of a resource. Failed lookups are
// logged and leave the record without the joined field.
func (m *Migrator) enrich(ctx context.Context, p *plan, records []*record.Record) error {
	acct := m.config.Accounts[p.res.Source]
	for _, e := range p.res.Fetch.Enrich {
		errs := fetch.Enrich(ctx, m.client, fetch.EnrichConfig{
			IDFetchConfig: fetch.IDFetchConfig{
				BaseURL:    acct.BaseURL,
				Path:       e.IDPath,
				Token:      m.tokens[p.res.Source],
				RecordPath: e.RecordPath,
				Query:      e.Query,
			},
			Field: e.Field,
			As:    e.As,
		}, records)
		for _, err := range errs {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.logFetchError(p, err)
		}
	}
	return nil
}

func (m *Migrator) logFetchError(p *plan, err error) {
	fields := logrus.Fields{"resource": p.res.Name}
	var fe *fetch.FetchError
	if errors.As(err, &fe) {
		fields["url"] = fe.URL
		if fe.Status != 0 {
			fields["response_status"] = fe.Status
		}
	}
	m.log.WithFields(fields).Errorf("Fetch failed, continuing with the records read so far: %v", err)
}

func (m *Migrator) writeDumps(res config.Resource, recs []*record.Record, jsonPath string) error {
	if err := dump.WriteJSON(jsonPath, recs); err != nil {
		return err
	}
	m.log.Infof("Wrote %d records to %s", len(recs), jsonPath)
	if res.CSV != "" {
		if err := dump.WriteCSV(res.CSV, recs, res.Columns); err != nil {
			return err
		}
	}
	if res.Excel != "" {
		if err := dump.WriteExcel(res.Excel, recs, res.Columns); err != nil {
			return err
		}
	}
	return nil
}

// transformOnly writes the payloads that would be created
func (m *Migrator) transformOnly(p *plan, records []*record.Record) error {
	ready, errs := p.transformer.TransformAll(records)
	for i, err := range errs {
		m.log.WithField("source_id", p.profile.SourceID(records[i])).Warnf("Failed to transform: %v", err)
	}
	m.log.Infof("Transformed %d of %d %s records", len(ready), len(records), p.res.Name)
	return m.writeDumps(p.res, ready, p.res.Export)
}

func (m *Migrator) createAll(ctx context.Context, p *plan, records []*record.Record) error {
	writers := []sink.Writer{sink.LogWriter{Log: m.log}, sink.JSONWriter{Path: p.res.SummaryJSON}}
	if p.res.SummaryCSV != "" {
		writers = append(writers, sink.CSVWriter{Path: p.res.SummaryCSV})
	}
	if p.res.SummaryExcel != "" {
		writers = append(writers, sink.ExcelWriter{Path: p.res.SummaryExcel})
	}
	writers = append(writers, m.writers...)
	s := sink.New(m.runID, p.res.Name, writers...)

	var creator *create.Creator
	if !m.config.DryRun {
		creator = create.New(m.client, create.Config{
			BaseURL:          m.config.Accounts[p.res.Dest].BaseURL,
			Path:             p.res.Create.Path,
			Token:            m.tokens[p.res.Dest],
			Method:           p.res.Create.Method,
			IDPaths:          p.res.Create.IDPaths,
			DuplicateMarkers: p.res.Create.DuplicateMarkers,
			MaxAttempts:      m.config.RetryConfig.MaxAttempts,
			BaseDelay:        m.config.RetryConfig.BaseDelay(),
			MaxDelay:         m.config.RetryConfig.MaxDelay(),
		}, m.log)
	}

	m.progress.Start(p.res.Name, len(records))
	var (
		runErr  error
		created []*record.Record
	)
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		o := m.migrateOne(ctx, p, creator, rec)
		s.Record(p.profile.SourceID(rec), p.profile.DisplayName(rec), o)
		if o.Kind == common.KindCreated && o.Body != nil {
			created = append(created, o.Body)
		}
		m.progress.Step(o)
	}
	m.progress.Finish()

	if p.res.CreatedOutput != "" {
		if err := dump.WriteJSON(p.res.CreatedOutput, created); err != nil {
			m.log.Errorf("Failed to write created %s: %v", p.res.Name, err)
		} else {
			m.log.Infof("Wrote %d created %s to %s", len(created), p.res.Name, p.res.CreatedOutput)
		}
	}

	// Summaries are written even for a cancelled run
	closeCtx := context.WithoutCancel(ctx)
	if err := s.Close(closeCtx); err != nil {
		m.log.Warnf("Failed to write %s summary: %v", p.res.Name, err)
	}
	m.summaries = append(m.summaries, s.Summary())
	return runErr
}

func (m *Migrator) migrateOne(ctx context.Context, p *plan, creator *create.Creator, rec *record.Record) common.Outcome {
	ready, err := p.transformer.Transform(rec)
	switch {
	case err != nil:
		return common.Failed("transform: " + err.Error())
	case ready == nil:
		return common.Skipped(common.ReasonExcluded)
	case creator == nil:
		m.log.Debugf("Dry run, would create: %s", common.Truncate(ready.String(), 512))
		return common.Skipped(common.ReasonDryRun)
	}
	return creator.Create(ctx, ready)
}
