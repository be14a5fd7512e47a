package hmmcore

import "github.com/flagger-go/covhmm/track"

// Decode runs forward-backward for one chunk against region reg
// without touching any estimator, returning the posterior γ_t(s) for
// every position and the argmax state per position (§4.6: "on
// convergence, per-chunk posteriors are computed"). Unlike
// forwardBackward, this never commits sufficient statistics and
// ignores the generation/cancellation machinery — it is meant to run
// once, after EM has converged.
func (h *HMM) Decode(reg Region, chunk *track.Chunk) (gamma [][]float64, labels []track.State) {
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

	gamma = make([][]float64, L)
	labels = make([]track.State, L)
	for t := 0; t < L; t++ {
		gamma[t] = make([]float64, n)
		gsum := 0.0
		best, bestVal := 0, -1.0
		for s := 0; s < n; s++ {
			gamma[t][s] = f[t][s] * b[t][s]
			gsum += gamma[t][s]
		}
		if gsum > 0 {
			for s := range gamma[t] {
				gamma[t][s] /= gsum
				if gamma[t][s] > bestVal {
					bestVal, best = gamma[t][s], s
				}
			}
		}
		labels[t] = track.State(best)
	}
	return gamma, labels
}
