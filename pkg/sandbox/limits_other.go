//go:build !linux && !darwin

package sandbox

// applyLimits is a no-op where rlimits are unavailable; the worker is still
// killed at its deadline.
func applyLimits(_, _ uint64) error {
	return nil
}

func cpuExceeded(error) bool {
	return false
}
