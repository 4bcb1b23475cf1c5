// Package metrics provides per-run metrics collection.
//
// The Collector accumulates counters during a single pipeline run. It is a
// leaf package with no internal dependencies. All increment methods are
// nil-receiver safe so callers never need to guard against a disabled
// collector.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all pipeline metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Build jobs
	BuildsStarted   int64
	BuildsSucceeded int64
	BuildsFailed    int64
	BuildsSkipped   int64

	// Store
	ArtifactsPublished int64
	PublishFailures    int64

	// Release host
	AssetsAttached int64
	AttachFailures int64

	// Distribution
	ChannelsPushed int64
	PushFailures   int64

	// Dimensions (informational, set at construction)
	ReleaseID      string
	Version        string
	StorageBackend string
}

// Collector accumulates metrics during a single pipeline run.
// Thread-safe via sync.Mutex.
type Collector struct {
	mu sync.Mutex

	buildsStarted   int64
	buildsSucceeded int64
	buildsFailed    int64
	buildsSkipped   int64

	artifactsPublished int64
	publishFailures    int64

	assetsAttached int64
	attachFailures int64

	channelsPushed int64
	pushFailures   int64

	releaseID      string
	version        string
	storageBackend string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(releaseID, version, storageBackend string) *Collector {
	return &Collector{
		releaseID:      releaseID,
		version:        version,
		storageBackend: storageBackend,
	}
}

// --- Build jobs ---

// IncBuildStarted records a platform build job start.
func (c *Collector) IncBuildStarted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.buildsStarted++
	c.mu.Unlock()
}

// IncBuildSucceeded records a platform build job that published its artifact.
func (c *Collector) IncBuildSucceeded() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.buildsSucceeded++
	c.mu.Unlock()
}

// IncBuildFailed records a platform build job failure.
func (c *Collector) IncBuildFailed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.buildsFailed++
	c.mu.Unlock()
}

// IncBuildSkipped records a platform build job that never ran.
func (c *Collector) IncBuildSkipped() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.buildsSkipped++
	c.mu.Unlock()
}

// --- Store ---

// IncArtifactPublished records a successful artifact publish to the store.
func (c *Collector) IncArtifactPublished() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.artifactsPublished++
	c.mu.Unlock()
}

// IncPublishFailure records a failed artifact publish.
func (c *Collector) IncPublishFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.publishFailures++
	c.mu.Unlock()
}

// --- Release host ---

// IncAssetAttached records an asset attached to the tagged release.
func (c *Collector) IncAssetAttached() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.assetsAttached++
	c.mu.Unlock()
}

// IncAttachFailure records a failed asset attach.
func (c *Collector) IncAttachFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.attachFailures++
	c.mu.Unlock()
}

// --- Distribution ---

// IncChannelPushed records a successful channel push.
func (c *Collector) IncChannelPushed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.channelsPushed++
	c.mu.Unlock()
}

// IncPushFailure records a failed channel push.
func (c *Collector) IncPushFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.pushFailures++
	c.mu.Unlock()
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all metrics.
// The returned Snapshot is safe to read concurrently; the Collector can
// continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		BuildsStarted:   c.buildsStarted,
		BuildsSucceeded: c.buildsSucceeded,
		BuildsFailed:    c.buildsFailed,
		BuildsSkipped:   c.buildsSkipped,

		ArtifactsPublished: c.artifactsPublished,
		PublishFailures:    c.publishFailures,

		AssetsAttached: c.assetsAttached,
		AttachFailures: c.attachFailures,

		ChannelsPushed: c.channelsPushed,
		PushFailures:   c.pushFailures,

		ReleaseID:      c.releaseID,
		Version:        c.version,
		StorageBackend: c.storageBackend,
	}
}
