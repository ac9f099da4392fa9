// SIMD capability diagnostics for the scoring path, grounded on the pattern
// in the vendored sqlite-vec module's simd_amd64.go (cpu feature detection
// gating which dot-product kernel runs). This package never changes scoring
// behavior based on capability; it only reports what the CPU could support,
// for startup diagnostics (cmd/vecload).
package scorer

import "golang.org/x/sys/cpu"

// Capability describes the SIMD instruction sets detected on this CPU that
// a vectorized scoring backend (quantize.ScalarQuantizer) could exploit.
func Capability() string {
	switch {
	case cpu.X86.HasAVX512F:
		return "AVX-512 (amd64)"
	case cpu.X86.HasAVX2 && cpu.X86.HasFMA:
		return "AVX2 + FMA (amd64)"
	case cpu.X86.HasSSE42:
		return "SSE4.2 (amd64)"
	case cpu.ARM64.HasASIMD:
		return "NEON (arm64)"
	default:
		return "generic (no detected SIMD extensions)"
	}
}
