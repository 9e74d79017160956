// Package engine orchestrates a full scan: credential resolution, plan
// construction, bounded parallel execution, and result aggregation.
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cloudrecon-labs/posturescan/internal/awsconn"
	"github.com/cloudrecon-labs/posturescan/internal/cache"
	"github.com/cloudrecon-labs/posturescan/internal/compliance"
	"github.com/cloudrecon-labs/posturescan/internal/config"
	"github.com/cloudrecon-labs/posturescan/internal/executor"
	"github.com/cloudrecon-labs/posturescan/internal/logging"
	"github.com/cloudrecon-labs/posturescan/internal/models"
	"github.com/cloudrecon-labs/posturescan/internal/policy"
	"github.com/cloudrecon-labs/posturescan/internal/scanners"
)

// State is the lifecycle phase of a scan.
type State string

const (
	StateIdle         State = "idle"
	StateInitializing State = "initializing"
	StateDiscovering  State = "discovering"
	StateEvaluating   State = "evaluating"
	StateAggregating  State = "aggregating"
	StateComplete     State = "complete"
	StateFailed       State = "failed"
)

// validTransitions encodes the one-way scan lifecycle. Failed is terminal
// and reachable from any live state.
var validTransitions = map[State][]State{
	StateIdle:         {StateInitializing},
	StateInitializing: {StateDiscovering, StateFailed},
	StateDiscovering:  {StateEvaluating, StateFailed},
	StateEvaluating:   {StateAggregating, StateFailed},
	StateAggregating:  {StateComplete, StateFailed},
}

// Manager runs scans. One Manager handles one scan at a time; its state is
// observable via State while a scan is in flight.
type Manager struct {
	cfg      *config.Config
	resolver *awsconn.Resolver
	pol      *policy.PolicyConfig
	logger   zerolog.Logger

	mu    sync.Mutex
	state State
}

// Option customises a Manager.
type Option func(*Manager)

// WithResolver replaces the credential resolver. Tests pass a resolver
// backed by a fake STS client.
func WithResolver(r *awsconn.Resolver) Option {
	return func(m *Manager) { m.resolver = r }
}

// WithPolicy applies a check policy to every scan run by the manager.
func WithPolicy(p *policy.PolicyConfig) Option {
	return func(m *Manager) { m.pol = p }
}

// WithLogger replaces the manager's logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager builds a Manager using cfg. A nil cfg uses the defaults.
func NewManager(cfg *config.Config, opts ...Option) *Manager {
	if cfg == nil {
		cfg = config.Default()
	}
	m := &Manager{
		cfg:      cfg,
		resolver: awsconn.NewResolver(),
		logger:   logging.New("engine"),
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the manager's current lifecycle phase.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) transition(to State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, next := range validTransitions[m.state] {
		if next == to {
			m.state = to
			return
		}
	}
	if to == StateFailed {
		m.state = StateFailed
		return
	}
	// An invalid transition is a programming error in the manager itself.
	panic("invalid scan state transition: " + string(m.state) + " -> " + string(to))
}

// Run executes one scan and returns its aggregated result.
//
// Fatal failures (invalid request, unresolvable credentials, unknown
// service allowlist entries) return an error and no result. Everything
// after plan construction degrades instead of failing: unit errors land in
// the result's error list, a deadline cut produces a partial result.
func (m *Manager) Run(ctx context.Context, req models.ScanRequest) (*models.ScanResult, error) {
	m.mu.Lock()
	m.state = StateIdle
	m.mu.Unlock()
	m.transition(StateInitializing)

	if err := req.Validate(); err != nil {
		m.transition(StateFailed)
		return nil, err
	}

	creds, err := m.resolver.Resolve(ctx, req.CredentialRef, m.cfg.Retry)
	if err != nil {
		m.transition(StateFailed)
		return nil, err
	}

	selected, err := scanners.Select(req.Level, req.Services)
	if err != nil {
		m.transition(StateFailed)
		return nil, err
	}

	scanID := uuid.NewString()
	logger := m.logger.With().Str("scan_id", scanID).Str("account_id", creds.AccountID).Logger()
	logger.Info().
		Str("level", req.Level.String()).
		Strs("regions", req.Regions).
		Int("scanners", len(selected)).
		Msg("scan starting")

	sc := &scanners.Context{
		Request:          req,
		Cache:            cache.New(m.cfg.Cache.TTL, m.cfg.Cache.MaxEntries),
		Clients:          awsconn.NewFactory(creds, m.cfg.RateLimit),
		Policy:           m.pol,
		CheckConcurrency: m.cfg.Concurrency.Checks,
		Logger:           logger,
	}

	units := buildPlan(selected, req.Regions, sc)
	startedAt := time.Now().UTC()

	runCtx := ctx
	var cancel context.CancelFunc
	if req.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	m.transition(StateDiscovering)
	results := executor.Run(runCtx, units, executor.Limits{
		Regions:  m.cfg.Concurrency.Regions,
		Services: m.cfg.Concurrency.Services,
	})

	m.transition(StateEvaluating)
	findings, scanErrs, completed := collectUnits(results)
	findings = policy.Apply(findings, m.pol)

	m.transition(StateAggregating)
	result := m.aggregate(scanID, creds.AccountID, req, startedAt, len(units), completed, findings, scanErrs)

	stats := sc.Cache.Snapshot()
	logger.Info().
		Str("state", string(StateComplete)).
		Int("findings", len(result.Findings)).
		Int("errors", len(result.Errors)).
		Bool("partial", result.Partial).
		Float64("overall_score", result.OverallScore).
		Int64("cache_hits", stats.Hits).
		Int64("cache_fetches", stats.Fetches).
		Int("clients", sc.Clients.ClientCount()).
		Msg("scan finished")

	m.transition(StateComplete)
	return result, nil
}

// collectUnits folds unit results into a flat finding list, the per-unit
// error list, and the count of units that ran to completion.
func collectUnits(results []executor.UnitResult) ([]models.Finding, []models.ScanError, int) {
	var (
		findings  []models.Finding
		scanErrs  []models.ScanError
		completed int
	)
	for _, r := range results {
		findings = append(findings, r.Findings...)
		if r.Err != nil {
			scanErrs = append(scanErrs, models.ScanError{
				Region:  r.Region,
				Service: r.Service,
				Message: unitErrorMessage(r),
			})
			continue
		}
		if r.Dispatched {
			completed++
		}
	}
	return findings, scanErrs, completed
}

// aggregate computes summaries and scores over the final finding set.
func (m *Manager) aggregate(scanID, accountID string, req models.ScanRequest, startedAt time.Time, planned, completed int, findings []models.Finding, scanErrs []models.ScanError) *models.ScanResult {
	return &models.ScanResult{
		ScanID:          scanID,
		AccountID:       accountID,
		Level:           req.Level.String(),
		Regions:         req.Regions,
		StartedAt:       startedAt,
		CompletedAt:     time.Now().UTC(),
		Findings:        findings,
		Summary:         models.Summarize(findings),
		FrameworkScores: compliance.Scores(findings),
		OverallScore:    compliance.Overall(findings, m.cfg.Scoring.Weights),
		Errors:          scanErrs,
		Partial:         completed < planned,
		PlannedUnits:    planned,
		CompletedUnits:  completed,
	}
}

func unitErrorMessage(r executor.UnitResult) string {
	if !r.Dispatched && errors.Is(r.Err, context.DeadlineExceeded) {
		return "not started: scan deadline exceeded"
	}
	if !r.Dispatched && errors.Is(r.Err, context.Canceled) {
		return "not started: scan cancelled"
	}
	return r.Err.Error()
}
