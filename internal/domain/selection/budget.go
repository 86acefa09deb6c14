package selection

import "runtime"

// Budget bounds the three concurrency tiers of a selection run: a shared
// worker pool for CPU-bound OCR, an admission gate for moments, and a gate
// for per-moment frame preparation.
type Budget struct {
	OCRThreads        int
	MomentConcurrency int
	FrameConcurrency  int
}

// ComputeBudget maps a physical core count onto worker counts. At least half
// of the cores stay free for the rest of the process (download, transcription),
// and OCR is capped at 10 threads where extra workers stop paying for their
// memory. Non-positive input falls back to the smallest row.
func ComputeBudget(physicalCores int) Budget {
	switch {
	case physicalCores <= 4:
		return Budget{OCRThreads: 4, MomentConcurrency: 3, FrameConcurrency: 2}
	case physicalCores <= 8:
		return Budget{OCRThreads: max(6, physicalCores/2), MomentConcurrency: 3, FrameConcurrency: 2}
	case physicalCores <= 16:
		return Budget{OCRThreads: max(8, physicalCores/2), MomentConcurrency: 4, FrameConcurrency: 3}
	default:
		return Budget{OCRThreads: min(10, physicalCores/2), MomentConcurrency: 4, FrameConcurrency: 3}
	}
}

// DetectBudget derives a budget from the host. runtime.NumCPU reports logical
// CPUs; halving approximates physical cores on SMT hosts, which errs toward
// the conservative row on machines without SMT.
func DetectBudget() Budget {
	return ComputeBudget(runtime.NumCPU() / 2)
}
