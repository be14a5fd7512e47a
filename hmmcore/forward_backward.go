package hmmcore

import (
	"math"

	"github.com/flagger-go/covhmm/track"
)

// startIdx is the start/termination row/column index within a
// region's Transition and HMM's alpha matrix: n (one past the last
// real state).
func (h *HMM) startIdx() int { return h.n }

// betaAt computes the edge-adjustment factor for position t within a
// chunk of length L: 1 in the interior, linearly interpolated over the
// first/last taperLen observations near either end (§4.7). taperLen is
// meanReadLength*minReadFractionAtEnds, rounded down; taperLen<=0
// disables tapering entirely.
func betaAt(t, L int, meanReadLength, minReadFractionAtEnds float64) float64 {
	taperLen := int(meanReadLength * minReadFractionAtEnds)
	if taperLen <= 0 {
		return 1
	}
	dist := t
	if L-1-t < dist {
		dist = L - 1 - t
	}
	if dist >= taperLen-1 {
		return 1
	}
	return float64(dist+1) / float64(taperLen)
}

// chunkResult holds one chunk's E-step contribution: its log P(x)
// term and (if not cancelled) confirmation that estimators were
// committed.
type chunkResult struct {
	logP      float64
	cancelled bool
}

// forwardBackward runs scaled forward-backward for one chunk against
// region reg, committing E-step sufficient statistics directly into
// reg.Series's and reg.Trans's estimators (§4.7). It checks
// h.Generation() at entry and again after the backward pass, before
// committing anything; if the generation has moved on since startGen,
// it returns early with cancelled=true and commits nothing.
func (h *HMM) forwardBackward(reg Region, chunk *track.Chunk, startGen int64, useHistogram bool, localHist [][]float64) chunkResult {
	if h.Generation() != startGen {
		return chunkResult{cancelled: true}
	}

	n := h.n
	L := chunk.Len()
	obs := chunk.Obs
	start := h.startIdx()

	f := make([][]float64, L)
	scale := make([]float64, L)

	f[0] = make([]float64, n)
	beta0 := betaAt(0, L, h.cfg.EM.MeanReadLength, h.cfg.EM.MinReadFractionAtEnds)
	sum0 := 0.0
	for s := 0; s < n; s++ {
		d := reg.Series.Dist(track.State(s))
		cond := reg.Trans.Conditional(start, track.State(s), obs[0])
		p := d.Prob(obs[0].Coverage, obs[0].Coverage, 0, beta0)
		f[0][s] = cond * p
		sum0 += f[0][s]
	}
	scale[0] = scaleOf(sum0)
	for s := range f[0] {
		f[0][s] *= scale[0]
	}

	for t := 1; t < L; t++ {
		f[t] = make([]float64, n)
		betaT := betaAt(t, L, h.cfg.EM.MeanReadLength, h.cfg.EM.MinReadFractionAtEnds)
		sum := 0.0
		for s := 0; s < n; s++ {
			d := reg.Series.Dist(track.State(s))
			acc := 0.0
			for pre := 0; pre < n; pre++ {
				if f[t-1][pre] == 0 {
					continue
				}
				cond := reg.Trans.Conditional(pre, track.State(s), obs[t])
				if cond == 0 {
					continue
				}
				p := d.Prob(obs[t].Coverage, obs[t-1].Coverage, h.alpha[pre][s], betaT)
				acc += f[t-1][pre] * cond * p
			}
			f[t][s] = acc
			sum += acc
		}
		scale[t] = scaleOf(sum)
		for s := range f[t] {
			f[t][s] *= scale[t]
		}
	}

	logP := math.Log(reg.Trans.TerminationProb())
	for t := 0; t < L; t++ {
		logP -= math.Log(scale[t])
	}

	b := make([][]float64, L)
	b[L-1] = make([]float64, n)
	for s := range b[L-1] {
		b[L-1][s] = 1
	}

	for t := L - 2; t >= 0; t-- {
		b[t] = make([]float64, n)
		betaNext := betaAt(t+1, L, h.cfg.EM.MeanReadLength, h.cfg.EM.MinReadFractionAtEnds)
		for s := 0; s < n; s++ {
			acc := 0.0
			for sp := 0; sp < n; sp++ {
				cond := reg.Trans.Conditional(s, track.State(sp), obs[t+1])
				if cond == 0 {
					continue
				}
				d := reg.Series.Dist(track.State(sp))
				p := d.Prob(obs[t+1].Coverage, obs[t].Coverage, h.alpha[s][sp], betaNext)
				acc += cond * p * b[t+1][sp]
			}
			b[t][s] = acc * scale[t+1]
		}
	}

	if h.Generation() != startGen {
		return chunkResult{cancelled: true}
	}

	for t := 0; t < L; t++ {
		gamma := make([]float64, n)
		gsum := 0.0
		for s := 0; s < n; s++ {
			gamma[s] = f[t][s] * b[t][s]
			gsum += gamma[s]
		}
		if gsum > 0 {
			for s := range gamma {
				gamma[s] /= gsum
			}
		}

		x := obs[t].Coverage
		xPrev := x
		if t > 0 {
			xPrev = obs[t-1].Coverage
		}
		for s := 0; s < n; s++ {
			if gamma[s] <= 0 {
				continue
			}
			if useHistogram {
				localHist[s][x] += gamma[s]
			} else {
				reg.Series.Dist(track.State(s)).Accumulate(x, xPrev, h.alpha[s][s], gamma[s])
			}
		}

		if t == 0 {
			for s := 0; s < n; s++ {
				reg.Trans.AccumulateCount(start, s, gamma[s])
			}
		} else {
			betaT := betaAt(t, L, h.cfg.EM.MeanReadLength, h.cfg.EM.MinReadFractionAtEnds)
			for pre := 0; pre < n; pre++ {
				if f[t-1][pre] == 0 {
					continue
				}
				for s := 0; s < n; s++ {
					cond := reg.Trans.Conditional(pre, track.State(s), obs[t])
					if cond == 0 {
						continue
					}
					d := reg.Series.Dist(track.State(s))
					p := d.Prob(x, xPrev, h.alpha[pre][s], betaT)
					xi := f[t-1][pre] * cond * p * b[t][s] * scale[t]
					reg.Trans.AccumulateCount(pre, s, xi)
				}
			}
		}
		if t == L-1 {
			for s := 0; s < n; s++ {
				reg.Trans.AccumulateCount(s, start, gamma[s])
			}
		}
	}

	return chunkResult{logP: logP}
}

// scaleOf returns 1/sum, or 0 when sum underflows to zero. A zero
// scale zeroes that column and makes the chunk's log-likelihood
// non-finite; the driver passes that value on in its report without
// checking it.
func scaleOf(sum float64) float64 {
	if sum <= 0 {
		return 0
	}
	return 1 / sum
}
