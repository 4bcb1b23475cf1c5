package types

// JobStatus is the state of a single pipeline graph node.
type JobStatus string

// Node states. A node is terminal once it reaches success, failure, or skipped.
const (
	StatusPending JobStatus = "pending"
	StatusRunning JobStatus = "running"
	StatusSuccess JobStatus = "success"
	StatusFailure JobStatus = "failure"
	StatusSkipped JobStatus = "skipped"
)

// Terminal returns true once the node has finished (in any way).
// Downstream nodes depend on completion, not on success.
func (s JobStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailure || s == StatusSkipped
}

// OutcomeStatus is the overall result of a pipeline run.
type OutcomeStatus string

// Overall run outcomes.
const (
	// OutcomeSuccess means every unit of work succeeded.
	OutcomeSuccess OutcomeStatus = "success"
	// OutcomeBuildFailure means at least one platform build failed.
	OutcomeBuildFailure OutcomeStatus = "build_failure"
	// OutcomeConfigError means version resolution or configuration failed
	// before any build could start.
	OutcomeConfigError OutcomeStatus = "config_error"
	// OutcomeDistFailure means builds succeeded but one or more
	// distribution pushes (or best-effort publishes) failed.
	OutcomeDistFailure OutcomeStatus = "dist_failure"
)
