package pipeline

// DistributionEnabled is the gate for the fan-in push: true iff a
// distribution target is configured. Pure; it never inspects build state,
// so a run with failed builds still pushes the platforms that succeeded.
func DistributionEnabled(target string) bool {
	return target != ""
}
