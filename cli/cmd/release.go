package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/slipway-dev/slipway/cli/config"
	"github.com/slipway-dev/slipway/cli/render"
	"github.com/slipway-dev/slipway/cli/tui"
	"github.com/slipway-dev/slipway/dist"
	"github.com/slipway-dev/slipway/journal"
	"github.com/slipway-dev/slipway/log"
	"github.com/slipway-dev/slipway/metrics"
	"github.com/slipway-dev/slipway/pack"
	"github.com/slipway-dev/slipway/pipeline"
	"github.com/slipway-dev/slipway/release"
	"github.com/slipway-dev/slipway/retry"
	"github.com/slipway-dev/slipway/store"
	"github.com/slipway-dev/slipway/toolchain"
	"github.com/slipway-dev/slipway/types"
)

// Fallbacks applied when the config file leaves a field empty.
const (
	defaultWorkDir          = ".slipway"
	defaultToolchainCommand = "cargo"
	defaultReleaseTokenEnv  = "SLIPWAY_RELEASE_TOKEN"
)

// ReleaseCommand returns the release command.
// This is the only command that executes work.
func ReleaseCommand() *cli.Command {
	return &cli.Command{
		Name:  "release",
		Usage: "Run the release pipeline (the only execution entrypoint)",
		Flags: append(ReadOnlyFlags(),
			ConfigFlag,
			&cli.StringFlag{
				Name:  "version-label",
				Usage: "Explicit release version (wins over --tag)",
			},
			&cli.StringFlag{
				Name:    "tag",
				Usage:   "Trigger tag to derive the version from (vX.Y.Z...)",
				EnvVars: []string{"SLIPWAY_TAG"},
			},
			&cli.StringFlag{
				Name:  "work-dir",
				Usage: "Working directory for staging, archives, and fetches",
			},
			&cli.StringFlag{
				Name:  "report",
				Usage: "Write a JSON release report to this path ('-' for stderr)",
			},
		),
		Action: releaseAction,
	}
}

func releaseAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(err.Error(), pipeline.ExitCodeConfigError)
	}
	if wd := c.String("work-dir"); wd != "" {
		cfg.WorkDir = wd
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = defaultWorkDir
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	releaseID := uuid.New().String()
	collector := metrics.NewCollector(releaseID, "", storeBackend(cfg))

	opts, closers, err := buildOptions(ctx, cfg, releaseID, collector)
	if err != nil {
		return cli.Exit(err.Error(), pipeline.ExitCodeConfigError)
	}
	defer func() {
		for _, closeFn := range closers {
			_ = closeFn()
		}
	}()
	opts.ExplicitVersion = c.String("version-label")
	opts.Tag = c.String("tag")

	var result *pipeline.ReleaseResult
	if c.Bool("tui") {
		result = runWithProgress(ctx, opts)
	} else {
		result, _ = pipeline.Run(ctx, opts)
	}

	if path := c.String("report"); path != "" {
		report := pipeline.BuildReleaseReport(result, collector.Snapshot())
		if err := pipeline.WriteReleaseReport(report, path); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: report not written: %v\n", err)
		}
	}

	// The TUI already showed the per-node outcome.
	if !c.Bool("tui") {
		if err := r.Render(result); err != nil {
			return err
		}
	}

	return cli.Exit("", result.ExitCode())
}

// buildOptions assembles pipeline options from config. Returned closers
// release collaborator resources after the run.
func buildOptions(ctx context.Context, cfg *config.Config, releaseID string, collector *metrics.Collector) (pipeline.Options, []func() error, error) {
	var closers []func() error

	command := cfg.Toolchain.Command
	if command == "" {
		command = defaultToolchainCommand
	}
	tc, err := toolchain.New(toolchain.Config{Command: command, OutRoot: cfg.Toolchain.OutRoot})
	if err != nil {
		return pipeline.Options{}, nil, err
	}

	policy := retryPolicy(cfg.Retry)

	opts := pipeline.Options{
		ReleaseID:   releaseID,
		PackageName: cfg.PackageName,
		BinaryName:  cfg.BinaryName,
		WorkDir:     cfg.WorkDir,
		Platforms:   cfg.Platforms,
		Toolchain:   tc,
		NewStore:    storeFactory(ctx, cfg),
		Pack:        pack.Options{VolumeName: cfg.PackageName},
		Retry:       policy,
		Logger:      log.NewLogger(releaseID),
		Metrics:     collector,
	}

	if cfg.UploadToRelease {
		tokenEnv := cfg.Release.TokenEnv
		if tokenEnv == "" {
			tokenEnv = defaultReleaseTokenEnv
		}
		client, err := release.New(release.Config{
			BaseURL: cfg.Release.BaseURL,
			Token:   os.Getenv(tokenEnv),
			Retry:   policy,
		})
		if err != nil {
			return pipeline.Options{}, nil, fmt.Errorf("release host: %w", err)
		}
		closers = append(closers, client.Close)
		opts.Attacher = client
	}

	if cfg.Distribution.Target != "" {
		opts.DistTarget = cfg.Distribution.Target
		opts.NewPusher = func() (pipeline.ChannelPusher, error) {
			return dist.New(dist.Config{
				Target:        cfg.Distribution.Target,
				Tool:          cfg.Distribution.Tool,
				CredentialEnv: cfg.Distribution.CredentialEnv,
				Retry:         policy,
			})
		}
	}

	if cfg.Journal.Path != "" {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			for _, closeFn := range closers {
				_ = closeFn()
			}
			return pipeline.Options{}, nil, fmt.Errorf("open journal: %w", err)
		}
		closers = append(closers, j.Close)
		opts.Journal = j
	}

	return opts, closers, nil
}

// storeFactory returns the store constructor for the configured backend.
// The factory runs inside the version-resolve node, so the partition
// carries the resolved version.
func storeFactory(ctx context.Context, cfg *config.Config) func(types.Version) (store.Store, error) {
	return func(v types.Version) (store.Store, error) {
		storeCfg := store.Config{
			PackageName: cfg.PackageName,
			Version:     v,
			Retention:   cfg.Store.Retention.Duration,
		}
		switch cfg.Store.Backend {
		case "", "fs":
			root := cfg.Store.Path
			if root == "" {
				root = filepath.Join(cfg.WorkDir, "store")
			}
			return store.NewFSStore(root, storeCfg)
		case "s3":
			bucket, prefix := store.ParseS3Path(cfg.Store.Path)
			return store.NewS3Store(ctx, store.S3Config{
				Bucket:       bucket,
				Prefix:       prefix,
				Region:       cfg.Store.Region,
				Endpoint:     cfg.Store.Endpoint,
				UsePathStyle: cfg.Store.S3PathStyle,
			}, storeCfg)
		default:
			return nil, fmt.Errorf("unknown store backend: %s (must be fs or s3)", cfg.Store.Backend)
		}
	}
}

// retryPolicy maps config values onto the retry policy, keeping defaults
// for anything unset.
func retryPolicy(rc config.RetryConfig) retry.Policy {
	p := retry.DefaultPolicy()
	if rc.Attempts > 0 {
		p.MaxAttempts = rc.Attempts
	}
	if rc.Backoff.Duration > 0 {
		p.Initial = rc.Backoff.Duration
	}
	if rc.MaxBackoff.Duration > 0 {
		p.Max = rc.MaxBackoff.Duration
	}
	return p
}

func storeBackend(cfg *config.Config) string {
	if cfg.Store.Backend == "" {
		return "fs"
	}
	return cfg.Store.Backend
}

// runWithProgress runs the pipeline behind the live progress view.
// Node transitions stream into the TUI; the result arrives after the
// view exits.
func runWithProgress(ctx context.Context, opts pipeline.Options) *pipeline.ReleaseResult {
	order := nodeOrder(opts.Platforms)

	// Each node emits at most two transitions (running, terminal), plus
	// one DoneMsg. A full buffer means OnNode never blocks, even if the
	// user quits the view early.
	events := make(chan tea.Msg, 2*len(order)+2)
	opts.OnNode = func(id string, status types.JobStatus) {
		events <- tui.NodeMsg{Node: id, Status: status}
	}

	// Best-effort title; the node feed carries the real progress.
	title, _ := pipeline.ResolveVersion(opts.ExplicitVersion, opts.Tag)

	resultCh := make(chan *pipeline.ReleaseResult, 1)
	go func() {
		result, _ := pipeline.Run(ctx, opts)
		events <- tui.DoneMsg{Outcome: result.Outcome, Message: result.Message}
		resultCh <- result
	}()

	if err := tui.RunProgress(title, order, events); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: progress view failed: %v\n", err)
	}
	return <-resultCh
}

// nodeOrder is the display order for the progress view: resolve first,
// builds in config order, then the distribution gate and fan-in.
func nodeOrder(platforms []types.PlatformSpec) []string {
	order := []string{pipeline.NodeResolve}
	for _, spec := range platforms {
		order = append(order, pipeline.BuildNodeID(spec.ID))
	}
	return append(order, pipeline.NodeGate, pipeline.NodeDistribute)
}
