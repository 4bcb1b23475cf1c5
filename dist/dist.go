// Package dist pushes packaged artifacts to the third-party distribution
// service via its CLI.
//
// The CLI is an opaque collaborator: slipway invokes
//
//	{tool} push {file} {target}:{channel} --userversion {version}
//
// with the credential exported in the child environment, and consumes only
// the exit status. One channel's failure never blocks another channel.
package dist

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/slipway-dev/slipway/retry"
	"github.com/slipway-dev/slipway/types"
)

// Defaults for the distribution tool and its credential environment variable.
const (
	DefaultTool          = "butler"
	DefaultCredentialEnv = "SLIPWAY_DIST_API_KEY"
	// toolCredentialEnv is the variable the tool itself reads.
	toolCredentialEnv = "BUTLER_API_KEY"
)

// ErrMissingCredential is returned when the credential env var is unset.
var ErrMissingCredential = errors.New("distribution credential is not set")

// Runner executes the distribution tool. Injected for testing.
type Runner func(ctx context.Context, env []string, name string, args ...string) error

// Config configures a Pusher.
type Config struct {
	// Target is the distribution destination ("organization/project").
	Target string
	// Tool is the CLI binary (default "butler").
	Tool string
	// CredentialEnv names the env var holding the API key
	// (default SLIPWAY_DIST_API_KEY).
	CredentialEnv string
	// Retry bounds retries per channel push.
	Retry retry.Policy
	// Runner overrides tool execution (for testing).
	Runner Runner
	// LookupEnv overrides credential lookup (for testing).
	LookupEnv func(string) (string, bool)
}

// Pusher pushes one channel at a time to the distribution service.
type Pusher struct {
	cfg        Config
	credential string
}

// New creates a Pusher and acquires the credential.
// A missing credential fails construction: distribution cannot proceed at
// all without it, and failing early beats failing once per channel.
func New(cfg Config) (*Pusher, error) {
	if cfg.Target == "" {
		return nil, errors.New("distribution target must be non-empty")
	}
	if cfg.Tool == "" {
		cfg.Tool = DefaultTool
	}
	if cfg.CredentialEnv == "" {
		cfg.CredentialEnv = DefaultCredentialEnv
	}
	if cfg.Runner == nil {
		cfg.Runner = runTool
	}
	if cfg.LookupEnv == nil {
		cfg.LookupEnv = os.LookupEnv
	}

	credential, ok := cfg.LookupEnv(cfg.CredentialEnv)
	if !ok || credential == "" {
		return nil, fmt.Errorf("%w (expected in $%s)", ErrMissingCredential, cfg.CredentialEnv)
	}

	return &Pusher{cfg: cfg, credential: credential}, nil
}

// Push uploads one artifact to its channel, labeled with the release version.
func (p *Pusher) Push(ctx context.Context, artifact types.PackagedArtifact, version types.Version) error {
	channel := artifact.Platform
	dest := p.cfg.Target + ":" + channel

	env := append(os.Environ(), toolCredentialEnv+"="+p.credential)

	op := func(ctx context.Context) error {
		return p.cfg.Runner(ctx, env, p.cfg.Tool,
			"push", artifact.Path, dest, "--userversion", version.String())
	}

	if err := retry.Do(ctx, p.cfg.Retry, op); err != nil {
		return fmt.Errorf("push channel %s: %w", channel, err)
	}
	return nil
}

// runTool is the default Runner built on os/exec.
func runTool(ctx context.Context, env []string, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = env

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("%s failed: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s failed: %w", name, err)
	}
	return nil
}
