package emission

import (
	"fmt"

	"github.com/flagger-go/covhmm/config"
	"github.com/flagger-go/covhmm/track"
)

// StateComponent names one (state, component) cell within a region's
// EmissionDistSeries.
type StateComponent struct {
	State     track.State
	Component int
}

// Binding holds, per parameter kind, the linear coefficient coupling a
// (state, component) cell to a degree of freedom shared with every
// other cell carrying a non-zero coefficient for that kind (C3, §4.3).
// A cell absent from the map is estimated independently (coefficient 0).
type Binding struct {
	coef map[ParameterKind]map[StateComponent]float64
}

// NewBinding returns an empty binding table (every cell independent).
func NewBinding() *Binding {
	return &Binding{coef: make(map[ParameterKind]map[StateComponent]float64)}
}

// Set registers a binding coefficient for one (kind, state, component) cell.
func (b *Binding) Set(kind ParameterKind, s track.State, component int, coef float64) {
	m, ok := b.coef[kind]
	if !ok {
		m = make(map[StateComponent]float64)
		b.coef[kind] = m
	}
	m[StateComponent{s, component}] = coef
}

// Coefficient returns the bound coefficient for (kind, s, component), or
// 0 ("estimate independently") if no binding was registered.
func (b *Binding) Coefficient(kind ParameterKind, s track.State, component int) float64 {
	m, ok := b.coef[kind]
	if !ok {
		return 0
	}
	return m[StateComponent{s, component}]
}

// Group returns every (state, component) -> coefficient pair bound
// under kind, i.e. sharing the same degree of freedom.
func (b *Binding) Group(kind ParameterKind) map[StateComponent]float64 {
	return b.coef[kind]
}

// BuildDefault constructs the default binding tables of §4.3: mean (or
// NB lambda) and var (or NB theta) tied to HAP as the reference state,
// weight always independent, and ERR replaced by an independent
// TruncExp lambda in the TruncExp+Gaussian model.
func BuildDefault(cfg config.EmissionConfig, ss *track.StateSet) *Binding {
	b := NewBinding()

	meanKind, varKind := ParamMean, ParamVar
	if cfg.ModelType == config.ModelNegativeBinomial {
		meanKind, varKind = ParamLambda, ParamTheta
	}

	tie := func(kind ParameterKind, name string, coef float64) {
		s, ok := ss.Find(name)
		if !ok {
			return
		}
		b.Set(kind, s, 0, coef)
	}

	if cfg.ModelType != config.ModelTruncExpGaussian {
		tie(meanKind, "ERR", cfg.ErrCompBindingCoef)
		tie(varKind, "ERR", cfg.ErrCompBindingCoef)
	}
	// ERR's binding is replaced by an independent TRUNC_EXP_LAMBDA for
	// the TruncExp+Gaussian model: no entry is set above, so the
	// driver treats it as independent and the ERR state's Dist is a
	// TruncExponential rather than a bound Gaussian/NB component.

	tie(meanKind, "DUP", 0.5)
	tie(varKind, "DUP", 0.5)

	tie(meanKind, "HAP", 1.0)
	tie(varKind, "HAP", 1.0)

	for k := 1; k <= cfg.NumCollapseStates; k++ {
		name := fmt.Sprintf("COL%d", k)
		coef := 2.0 + float64(k-1)
		tie(meanKind, name, coef)
		tie(varKind, name, coef)
	}

	tie(meanKind, "MSJ", 1.0)
	if cfg.ModelType != config.ModelNegativeBinomial {
		tie(varKind, "MSJ", 1.0)
	}
	// NB theta's MSJ coefficient is 0 (independent): no entry set.
	// Weight coefficients are always 0 (independent): never set here.

	return b
}
