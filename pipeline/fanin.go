package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/slipway-dev/slipway/log"
	"github.com/slipway-dev/slipway/metrics"
	"github.com/slipway-dev/slipway/store"
	"github.com/slipway-dev/slipway/types"
)

// ChannelPusher pushes one artifact to one distribution channel.
type ChannelPusher interface {
	Push(ctx context.Context, artifact types.PackagedArtifact, version types.Version) error
}

// ChannelResult is one channel's push outcome.
type ChannelResult struct {
	Channel string          `json:"channel"`
	Status  types.JobStatus `json:"status"`
	Error   string          `json:"error,omitempty"`
}

// FanInResult aggregates the distribution pushes of one run.
type FanInResult struct {
	Channels []ChannelResult `json:"channels"`
}

// Failed reports whether any channel push failed.
func (r *FanInResult) Failed() bool {
	for _, c := range r.Channels {
		if c.Status == types.StatusFailure {
			return true
		}
	}
	return false
}

// DistributionFanIn collects published artifacts and pushes each platform's
// archive to its channel.
//
// Platforms absent from the store (failed builds) are simply not pushed.
// Channels are pushed concurrently and independently: one channel's failure
// never blocks another's.
type DistributionFanIn struct {
	Store   store.Store
	Version types.Version
	// FetchDir receives the downloaded archives.
	FetchDir string
	// NewPusher constructs the pusher; a construction error (missing
	// credential) fails the fan-in before any push.
	NewPusher func() (ChannelPusher, error)
	Logger    *log.Logger
	Metrics   *metrics.Collector
}

// Execute runs the fan-in. The returned error marks the fan-in node failed;
// per-channel outcomes are always in the result when pushes ran.
func (f *DistributionFanIn) Execute(ctx context.Context) (*FanInResult, error) {
	byKey, err := f.Store.FetchAll(ctx, f.FetchDir)
	if err != nil {
		return nil, fmt.Errorf("fetch artifacts: %w", err)
	}
	if len(byKey) == 0 {
		return nil, fmt.Errorf("no artifacts to distribute for %s", f.Version)
	}

	pusher, err := f.NewPusher()
	if err != nil {
		return nil, err
	}

	channels := make([]string, 0, len(byKey))
	for channel := range byKey {
		channels = append(channels, channel)
	}
	sort.Strings(channels)

	results := make([]ChannelResult, len(channels))
	var wg sync.WaitGroup
	for i, channel := range channels {
		artifacts := byKey[channel]
		wg.Add(1)
		go func(i int, channel string, artifacts []types.PackagedArtifact) {
			defer wg.Done()
			results[i] = f.pushChannel(ctx, pusher, channel, artifacts)
		}(i, channel, artifacts)
	}
	wg.Wait()

	result := &FanInResult{Channels: results}
	if result.Failed() {
		return result, fmt.Errorf("one or more channel pushes failed")
	}
	return result, nil
}

func (f *DistributionFanIn) pushChannel(ctx context.Context, pusher ChannelPusher, channel string, artifacts []types.PackagedArtifact) ChannelResult {
	for _, artifact := range artifacts {
		if err := pusher.Push(ctx, artifact, f.Version); err != nil {
			f.Metrics.IncPushFailure()
			f.Logger.Error("channel push failed", map[string]any{
				"channel": channel,
				"error":   err.Error(),
			})
			return ChannelResult{Channel: channel, Status: types.StatusFailure, Error: err.Error()}
		}
	}
	f.Metrics.IncChannelPushed()
	f.Logger.Info("channel pushed", map[string]any{"channel": channel})
	return ChannelResult{Channel: channel, Status: types.StatusSuccess}
}
