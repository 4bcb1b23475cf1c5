package pipeline

import "github.com/slipway-dev/slipway/types"

// ResolveVersion derives the single release version for a run.
//
// An explicit version label always wins and needs only be non-empty.
// Otherwise the trigger tag is parsed and must match
// v<major>.<minor>.<patch>[suffix]. Neither present is a configuration
// error that aborts the run before any build starts.
func ResolveVersion(explicit, tag string) (types.Version, error) {
	if explicit != "" {
		return types.Version(explicit), nil
	}
	return types.ParseTag(tag)
}
