package emission

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParameterEstimator_IncrementAndEstimate(t *testing.T) {
	e := NewParameterEstimator(2)
	e.Increment(30, 3, 0)
	e.Increment(18, 2, 1)
	assert.InDelta(t, 10.0, e.Estimate(0), 1e-9)
	assert.InDelta(t, 9.0, e.Estimate(1), 1e-9)
}

func TestParameterEstimator_IncrementDenominatorForAllComps(t *testing.T) {
	e := NewParameterEstimator(3)
	e.IncrementDenominatorForAllComps(6, 6, 0)
	e.IncrementDenominatorForAllComps(2, 2, 1)
	assert.InDelta(t, 6.0, e.Numerator(0), 1e-9)
	assert.InDelta(t, 8.0, e.Denominator(0), 1e-9)
	assert.InDelta(t, 8.0, e.Denominator(1), 1e-9)
	assert.InDelta(t, 8.0, e.Denominator(2), 1e-9)
}

func TestParameterEstimator_MergeFromIsOrderIndependent(t *testing.T) {
	a := NewParameterEstimator(1)
	b := NewParameterEstimator(1)
	c := NewParameterEstimator(1)
	a.Increment(10, 2, 0)
	b.Increment(5, 1, 0)
	c.Increment(3, 1, 0)

	left := NewParameterEstimator(1)
	left.MergeFrom(a)
	left.MergeFrom(b)
	left.MergeFrom(c)

	right := NewParameterEstimator(1)
	right.MergeFrom(b)
	right.MergeFrom(c)
	right.MergeFrom(a)

	assert.InDelta(t, left.Numerator(0), right.Numerator(0), 1e-9)
	assert.InDelta(t, left.Denominator(0), right.Denominator(0), 1e-9)
}

func TestParameterEstimator_ConcurrentIncrementIsRaceFree(t *testing.T) {
	e := NewParameterEstimator(1)
	var wg sync.WaitGroup
	for i := 0; i < 1000; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Increment(1, 1, 0)
		}()
	}
	wg.Wait()
	assert.InDelta(t, 1000.0, e.Denominator(0), 1e-9)
}

func TestParameterEstimator_HasSupport(t *testing.T) {
	e := NewParameterEstimator(1)
	e.Increment(1, 0.5, 0)
	assert.False(t, e.HasSupport(0, 1))
	e.Increment(1, 1, 0)
	assert.True(t, e.HasSupport(0, 1))
}

func TestParameterEstimator_EstimateZeroDenominatorReturnsZero(t *testing.T) {
	e := NewParameterEstimator(1)
	assert.Equal(t, 0.0, e.Estimate(0))
}

func TestParameterEstimator_TruncExpLambdaUsesGoldenSection(t *testing.T) {
	e := NewTruncExpLambdaEstimator(10, 1e-9)
	e.Increment(450, 100, 0)
	got := e.Estimate(0)
	assert.Greater(t, got, 0.0)
}
