// Package pipeline implements the release pipeline: an explicit task graph
// that resolves the version once, runs per-platform build jobs in parallel,
// and fans in to the distribution push behind a configuration gate.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/slipway-dev/slipway/types"
)

// Node is one unit of work in the release graph.
type Node struct {
	// ID identifies the node; unique within a graph.
	ID string
	// Needs lists node IDs that must reach a terminal state before this
	// node starts. Completion, not success: a failed dependency still
	// satisfies the edge.
	Needs []string
	// Critical marks a node whose failure cancels the whole run.
	Critical bool
	// RunIf, when non-nil and false at schedule time, skips the node
	// without running it.
	RunIf func() bool
	// Run does the work. A non-nil error marks the node failed.
	Run func(ctx context.Context) error
}

// NodeResult is one node's final state.
type NodeResult struct {
	Status types.JobStatus
	Err    error
}

// Engine executes a node graph, running independent nodes in parallel.
type Engine struct {
	nodes    []*Node
	onChange func(id string, status types.JobStatus)
}

// NewEngine validates the graph and returns an engine for it.
// onChange, when non-nil, observes every status transition (used by the
// live progress view); it is called with the engine's internal lock held
// and must not block.
func NewEngine(nodes []*Node, onChange func(id string, status types.JobStatus)) (*Engine, error) {
	byID := make(map[string]*Node, len(nodes))
	for _, n := range nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("graph node with empty ID")
		}
		if n.Run == nil {
			return nil, fmt.Errorf("graph node %s has no run function", n.ID)
		}
		if _, dup := byID[n.ID]; dup {
			return nil, fmt.Errorf("duplicate graph node %s", n.ID)
		}
		byID[n.ID] = n
	}
	for _, n := range nodes {
		for _, need := range n.Needs {
			if _, ok := byID[need]; !ok {
				return nil, fmt.Errorf("graph node %s needs unknown node %s", n.ID, need)
			}
		}
	}
	return &Engine{nodes: nodes, onChange: onChange}, nil
}

// Execute runs the graph to completion and returns every node's result.
// The returned error reports graph defects (a dependency cycle), not node
// failures; those are in the per-node results.
func (e *Engine) Execute(ctx context.Context) (map[string]NodeResult, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	status := make(map[string]types.JobStatus, len(e.nodes))
	errs := make(map[string]error, len(e.nodes))
	for _, n := range e.nodes {
		status[n.ID] = types.StatusPending
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		canceled bool
	)
	done := make(chan struct{}, len(e.nodes))

	// setStatus must be called with mu held.
	setStatus := func(n *Node, s types.JobStatus) {
		status[n.ID] = s
		if e.onChange != nil {
			e.onChange(n.ID, s)
		}
	}

	needsTerminal := func(n *Node) bool {
		for _, need := range n.Needs {
			if !status[need].Terminal() {
				return false
			}
		}
		return true
	}

	launch := func(n *Node) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := n.Run(runCtx)

			mu.Lock()
			if err != nil {
				setStatus(n, types.StatusFailure)
				errs[n.ID] = err
				if n.Critical {
					canceled = true
					cancel()
				}
			} else {
				setStatus(n, types.StatusSuccess)
			}
			mu.Unlock()
			done <- struct{}{}
		}()
	}

	for {
		mu.Lock()
		var ready []*Node
		progress := false
		running := 0
		blocked := 0
		for _, n := range e.nodes {
			switch status[n.ID] {
			case types.StatusPending:
				if canceled {
					setStatus(n, types.StatusSkipped)
					progress = true
					continue
				}
				if !needsTerminal(n) {
					blocked++
					continue
				}
				if n.RunIf != nil && !n.RunIf() {
					setStatus(n, types.StatusSkipped)
					progress = true
					continue
				}
				setStatus(n, types.StatusRunning)
				ready = append(ready, n)
			case types.StatusRunning:
				running++
			}
		}
		mu.Unlock()

		for _, n := range ready {
			launch(n)
		}

		if len(ready) > 0 || progress {
			// Skips may have unblocked dependents; re-scan immediately.
			continue
		}
		if running > 0 {
			<-done
			continue
		}
		if blocked > 0 {
			return nil, fmt.Errorf("release graph deadlock: %d nodes blocked on unfinished dependencies", blocked)
		}
		break
	}

	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	results := make(map[string]NodeResult, len(e.nodes))
	for _, n := range e.nodes {
		results[n.ID] = NodeResult{Status: status[n.ID], Err: errs[n.ID]}
	}
	return results, nil
}
