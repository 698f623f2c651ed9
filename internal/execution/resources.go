package execution

import "time"

// ResourceLimits is the per-runtime resource policy (spec §4.7 step 7, §5
// defaults). The dispatcher takes only Timeout from it, as the wall-clock
// deadline; the remaining fields are applied only by the executors that are
// constructed with them (Docker, Wasm, Kubernetes).
type ResourceLimits struct {
	CPUCores     float64
	MemoryMiB    int64
	SwapMiB      int64
	NetworkAllow bool
	Timeout      time.Duration

	// Wasm-only.
	FuelBudget int64

	// Kubernetes-only.
	BackoffLimit int32
	GPUCount     int
	GPUVendor    string
}

// DefaultResourceLimits returns the spec §5 defaults for runtime.
func DefaultResourceLimits(runtime RuntimeKind) ResourceLimits {
	switch runtime {
	case RuntimeWasm:
		return ResourceLimits{MemoryMiB: 512, Timeout: 60 * time.Second, FuelBudget: 10_000_000_000}
	case RuntimeDocker:
		return ResourceLimits{CPUCores: 2.0, MemoryMiB: 512, SwapMiB: 0, NetworkAllow: false, Timeout: 300 * time.Second}
	case RuntimeKubernetes:
		return ResourceLimits{Timeout: 3600 * time.Second, BackoffLimit: 3}
	default:
		return ResourceLimits{Timeout: 30 * time.Second}
	}
}
