package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/slipway-dev/slipway/journal"
	"github.com/slipway-dev/slipway/log"
	"github.com/slipway-dev/slipway/metrics"
	"github.com/slipway-dev/slipway/pack"
	"github.com/slipway-dev/slipway/retry"
	"github.com/slipway-dev/slipway/store"
	"github.com/slipway-dev/slipway/toolchain"
	"github.com/slipway-dev/slipway/types"
)

// Graph node IDs.
const (
	NodeResolve    = "resolve"
	NodeGate       = "gate"
	NodeDistribute = "distribute"
)

// BuildNodeID returns the graph node ID for a platform build job.
func BuildNodeID(platformID string) string { return "build:" + platformID }

// Exit codes.
const (
	ExitCodeSuccess      = 0 // every unit of work succeeded
	ExitCodeBuildFailure = 1 // at least one platform build failed
	ExitCodeConfigError  = 2 // configuration or version-resolution failure
	ExitCodeDistFailure  = 3 // builds succeeded, distribution did not
)

// Options configures one pipeline run.
type Options struct {
	// ReleaseID identifies the run; assigned when empty.
	ReleaseID   string
	PackageName string
	BinaryName  string
	// WorkDir receives staging dirs, archives, and fetched artifacts.
	WorkDir string

	// ExplicitVersion wins over Tag when both are present.
	ExplicitVersion string
	Tag             string

	Platforms []types.PlatformSpec

	// DistTarget gates the fan-in; empty disables distribution.
	DistTarget string
	// NewPusher constructs the channel pusher at fan-in time.
	NewPusher func() (ChannelPusher, error)

	Toolchain *toolchain.Toolchain
	// NewStore opens the artifact store for the resolved version's partition.
	NewStore func(version types.Version) (store.Store, error)
	// Attacher is nil when release upload is disabled.
	Attacher Attacher
	Pack     pack.Options
	Retry    retry.Policy

	Logger  *log.Logger
	Metrics *metrics.Collector
	// Journal records the run; nil disables history. Journal failures are
	// logged, never fatal.
	Journal *journal.Journal
	// OnNode observes node status transitions (live progress view).
	OnNode func(id string, status types.JobStatus)
}

// ReleaseResult aggregates one pipeline run.
type ReleaseResult struct {
	ReleaseID string                `json:"release_id"`
	Version   types.Version         `json:"version"`
	Outcome   types.OutcomeStatus   `json:"outcome"`
	Message   string                `json:"message"`
	Jobs      map[string]*JobResult `json:"jobs"`
	Gate      bool                  `json:"distribution_enabled"`
	FanIn     *FanInResult          `json:"distribution,omitempty"`
	StartedAt time.Time             `json:"started_at"`
	Duration  time.Duration         `json:"duration"`
}

// ExitCode maps the run outcome to the process exit code.
func (r *ReleaseResult) ExitCode() int {
	switch r.Outcome {
	case types.OutcomeSuccess:
		return ExitCodeSuccess
	case types.OutcomeBuildFailure:
		return ExitCodeBuildFailure
	case types.OutcomeConfigError:
		return ExitCodeConfigError
	case types.OutcomeDistFailure:
		return ExitCodeDistFailure
	default:
		return ExitCodeConfigError
	}
}

// Run executes the release pipeline and returns the aggregated result.
// The result is always non-nil; the error restates the outcome for callers
// that only care about failure.
func Run(ctx context.Context, opts Options) (*ReleaseResult, error) {
	if opts.ReleaseID == "" {
		opts.ReleaseID = uuid.New().String()
	}
	if opts.Logger == nil {
		opts.Logger = log.NewLogger(opts.ReleaseID)
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewCollector(opts.ReleaseID, "", "")
	}

	result := &ReleaseResult{
		ReleaseID: opts.ReleaseID,
		Jobs:      make(map[string]*JobResult, len(opts.Platforms)),
		StartedAt: time.Now(),
	}
	finish := func(outcome types.OutcomeStatus, message string) (*ReleaseResult, error) {
		result.Outcome = outcome
		result.Message = message
		result.Duration = time.Since(result.StartedAt)
		appendJournal(ctx, opts, result)
		if outcome == types.OutcomeSuccess {
			return result, nil
		}
		return result, errors.New(message)
	}

	if err := validateOptions(opts); err != nil {
		return finish(types.OutcomeConfigError, err.Error())
	}

	// Slots written by a node before any dependent starts.
	var (
		mu       sync.Mutex
		version  types.Version
		st       store.Store
		logger   = opts.Logger
		gateOpen bool
	)
	result.Gate = DistributionEnabled(opts.DistTarget)

	nodes := []*Node{
		{
			ID:       NodeResolve,
			Critical: true,
			Run: func(ctx context.Context) error {
				v, err := ResolveVersion(opts.ExplicitVersion, opts.Tag)
				if err != nil {
					return err
				}
				s, err := opts.NewStore(v)
				if err != nil {
					return fmt.Errorf("open artifact store: %w", err)
				}
				mu.Lock()
				version = v
				st = s
				result.Version = v
				logger = opts.Logger.WithVersion(v)
				mu.Unlock()
				logger.Info("version resolved", map[string]any{"version": v.String()})
				return nil
			},
		},
		{
			ID: NodeGate,
			Run: func(context.Context) error {
				mu.Lock()
				gateOpen = DistributionEnabled(opts.DistTarget)
				mu.Unlock()
				return nil
			},
		},
	}

	fanInNeeds := []string{NodeResolve, NodeGate}
	for _, spec := range opts.Platforms {
		spec := spec
		nodeID := BuildNodeID(spec.ID)
		fanInNeeds = append(fanInNeeds, nodeID)
		nodes = append(nodes, &Node{
			ID:    nodeID,
			Needs: []string{NodeResolve},
			Run: func(ctx context.Context) error {
				job := &PlatformBuildJob{
					PackageName: opts.PackageName,
					BinaryName:  opts.BinaryName,
					WorkDir:     opts.WorkDir,
					Version:     version,
					Spec:        spec,
					Deps: BuildDeps{
						Toolchain: opts.Toolchain,
						Store:     st,
						Attacher:  opts.Attacher,
						Pack:      opts.Pack,
						Retry:     opts.Retry,
						Logger:    logger,
						Metrics:   opts.Metrics,
					},
				}
				jobResult, err := job.Execute(ctx)
				mu.Lock()
				result.Jobs[spec.ID] = jobResult
				mu.Unlock()
				return err
			},
		})
	}

	nodes = append(nodes, &Node{
		ID:    NodeDistribute,
		Needs: fanInNeeds,
		RunIf: func() bool { return gateOpen },
		Run: func(ctx context.Context) error {
			fanIn := &DistributionFanIn{
				Store:     st,
				Version:   version,
				FetchDir:  filepath.Join(opts.WorkDir, "fetch"),
				NewPusher: opts.NewPusher,
				Logger:    logger,
				Metrics:   opts.Metrics,
			}
			fanInResult, err := fanIn.Execute(ctx)
			mu.Lock()
			result.FanIn = fanInResult
			mu.Unlock()
			return err
		},
	})

	engine, err := NewEngine(nodes, opts.OnNode)
	if err != nil {
		return finish(types.OutcomeConfigError, err.Error())
	}

	nodeResults, err := engine.Execute(ctx)
	if st != nil {
		defer func() { _ = st.Close() }()
	}
	if err != nil {
		return finish(types.OutcomeConfigError, err.Error())
	}

	// Skipped build nodes never wrote a JobResult.
	for _, spec := range opts.Platforms {
		nr := nodeResults[BuildNodeID(spec.ID)]
		if result.Jobs[spec.ID] == nil {
			opts.Metrics.IncBuildSkipped()
			result.Jobs[spec.ID] = &JobResult{Platform: spec.ID, Status: types.StatusSkipped}
		} else if nr.Status == types.StatusSkipped {
			result.Jobs[spec.ID].Status = types.StatusSkipped
		}
	}

	if nr := nodeResults[NodeResolve]; nr.Status == types.StatusFailure {
		return finish(types.OutcomeConfigError, nr.Err.Error())
	}

	buildsFailed := 0
	for _, job := range result.Jobs {
		if job.Status == types.StatusFailure {
			buildsFailed++
		}
	}
	if buildsFailed > 0 {
		return finish(types.OutcomeBuildFailure,
			fmt.Sprintf("%d of %d platform builds failed", buildsFailed, len(opts.Platforms)))
	}

	if nr := nodeResults[NodeDistribute]; nr.Status == types.StatusFailure {
		return finish(types.OutcomeDistFailure, nr.Err.Error())
	}
	for _, job := range result.Jobs {
		if len(job.Warnings) > 0 {
			return finish(types.OutcomeDistFailure,
				fmt.Sprintf("platform %s: %s", job.Platform, job.Warnings[0]))
		}
	}

	return finish(types.OutcomeSuccess, "release complete")
}

func validateOptions(opts Options) error {
	if opts.PackageName == "" {
		return errors.New("package name must be non-empty")
	}
	if opts.BinaryName == "" {
		return errors.New("binary name must be non-empty")
	}
	if opts.WorkDir == "" {
		return errors.New("work dir must be non-empty")
	}
	if len(opts.Platforms) == 0 {
		return errors.New("at least one platform must be configured")
	}
	seen := make(map[string]struct{}, len(opts.Platforms))
	for i := range opts.Platforms {
		spec := &opts.Platforms[i]
		if err := spec.Validate(); err != nil {
			return err
		}
		if _, dup := seen[spec.ID]; dup {
			return fmt.Errorf("duplicate platform id %q", spec.ID)
		}
		seen[spec.ID] = struct{}{}
	}
	if opts.Toolchain == nil {
		return errors.New("toolchain is required")
	}
	if opts.NewStore == nil {
		return errors.New("store factory is required")
	}
	if DistributionEnabled(opts.DistTarget) && opts.NewPusher == nil {
		return errors.New("distribution target configured but no pusher factory")
	}
	return nil
}

// appendJournal records the run. Best-effort: the journal is advisory.
func appendJournal(ctx context.Context, opts Options, result *ReleaseResult) {
	if opts.Journal == nil {
		return
	}
	record := &journal.RunRecord{
		ID:         result.ReleaseID,
		Version:    result.Version,
		Outcome:    result.Outcome,
		StartedAt:  result.StartedAt,
		FinishedAt: result.StartedAt.Add(result.Duration),
	}
	for _, job := range result.Jobs {
		jr := journal.JobRecord{Platform: job.Platform, Status: job.Status, Error: job.Error}
		if job.Artifact != nil {
			jr.Artifact = job.Artifact.Name
		}
		record.Jobs = append(record.Jobs, jr)
	}
	if err := opts.Journal.Append(ctx, record); err != nil {
		opts.Logger.Warn("journal append failed", map[string]any{"error": err.Error()})
	}
}
