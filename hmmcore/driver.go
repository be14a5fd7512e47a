package hmmcore

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/flagger-go/covhmm/accelerate"
	"github.com/flagger-go/covhmm/track"
)

// chunkTask names one chunk's region and data, the unit of work the
// per-iteration worker pool fans out over (§5).
type chunkTask struct {
	region int
	chunk  *track.Chunk
}

// IterationReport summarizes one EM iteration for the caller's logging.
type IterationReport struct {
	Iteration     int
	LogLikelihood float64
	Converged     bool
	Accelerated   bool
}

// useHistogramFastPath reports whether the whole alpha matrix is zero,
// letting the E-step accumulate a per-state count histogram instead of
// calling Accumulate per observation (§4.4, §5).
func (h *HMM) useHistogramFastPath() bool {
	for i := range h.alpha {
		for j := range h.alpha[i] {
			if h.alpha[i][j] != 0 {
				return false
			}
		}
	}
	return true
}

// RunEM drives Baum-Welch to convergence or MaxIterations, running
// the per-chunk E-step across a bounded worker pool, wrapping every
// third iteration's result through the SQUAREM accelerator when
// cfg.EM.UseAccelerator is set (§4.6, §4.8). chunksByRegion maps
// region index to the chunks assigned to it.
func (h *HMM) RunEM(chunksByRegion map[int][]*track.Chunk) []IterationReport {
	var reports []IterationReport
	var history [][]float64 // last up-to-3 flattened iterates, oldest first

	for iter := 0; iter < h.cfg.EM.MaxIterations; iter++ {
		logP, converged := h.runIteration(chunksByRegion)
		h.logLikelihood = logP
		logrus.Infof("hmmcore: iteration %d logP=%.6f converged=%v", iter, logP, converged)

		accelerated := false
		if h.cfg.EM.UseAccelerator {
			history = append(history, h.Flatten())
			if len(history) > 3 {
				history = history[len(history)-3:]
			}
			if len(history) == 3 {
				candidate := accelerate.Step(history[0], history[1], history[2], func(vec []float64) bool {
					h.Unflatten(vec)
					h.rebuildAllDerived()
					return h.Feasible()
				})
				h.Unflatten(candidate)
				h.rebuildAllDerived()
				logP2, converged2 := h.runIteration(chunksByRegion)
				h.logLikelihood = logP2
				converged = converged2
				accelerated = true
				history = nil
			}
		}

		reports = append(reports, IterationReport{Iteration: iter, LogLikelihood: h.logLikelihood, Converged: converged, Accelerated: accelerated})
		if converged {
			break
		}
	}
	return reports
}

// runIteration runs one full E-step (parallel over chunks, serial
// merge barrier) followed by one M-step round (Series.EstimateParameters
// and Transition.EstimateTransitionMatrix per region), returning the
// aggregated log-likelihood and whether every updated parameter
// converged (§4.6, §5).
func (h *HMM) runIteration(chunksByRegion map[int][]*track.Chunk) (float64, bool) {
	startGen := h.BumpGeneration()
	useHist := h.useHistogramFastPath()

	for _, r := range h.regions {
		r.Series.ResetEstimators()
		r.Trans.ResetCounts()
	}

	var tasks []chunkTask
	for region, chunks := range chunksByRegion {
		for _, c := range chunks {
			tasks = append(tasks, chunkTask{region: region, chunk: c})
		}
	}

	poolSize := h.cfg.EM.WorkerPoolSize
	if poolSize < 1 {
		poolSize = 1
	}

	var mu sync.Mutex
	totalLogP := 0.0
	sem := make(chan struct{}, poolSize)
	var wg sync.WaitGroup

	for _, task := range tasks {
		wg.Add(1)
		sem <- struct{}{}
		go func(t chunkTask) {
			defer wg.Done()
			defer func() { <-sem }()

			reg := h.regions[t.region]
			var localHist [][]float64
			if useHist {
				localHist = reg.Series.NewLocalHistogram()
			}
			res := h.forwardBackward(reg, t.chunk, startGen, useHist, localHist)
			if res.cancelled {
				return
			}
			if useHist {
				reg.Series.MergeHistogram(localHist)
			}
			mu.Lock()
			totalLogP += res.logP
			mu.Unlock()
		}(task)
	}
	wg.Wait()

	if useHist {
		for _, r := range h.regions {
			r.Series.ApplyHistogram()
		}
	}

	converged := true
	const transitionTol = 1e-4
	for _, r := range h.regions {
		if !r.Series.EstimateParameters() {
			converged = false
		}
		if !r.Trans.EstimateTransitionMatrix(transitionTol) {
			converged = false
		}
	}

	return totalLogP, converged
}
