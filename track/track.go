// Package track defines the observation and chunk types the HMM core
// consumes: per-window coverage values tagged with region and
// annotation bits. It does not parse alignments; see package trackio
// for the (deliberately thin) text/gzip reader that builds these from
// the external track format in spec §6.
package track

import "fmt"

// State is a categorical assembly-state label. States are ordered;
// COL states form a contiguous block representing collapse
// multiplicities 2..K+1, per GLOSSARY.
type State int

// Kind classifies a State into one of the named families. COL states
// additionally carry a multiplicity (Kind == KindCollapse).
type Kind int

const (
	KindErr Kind = iota
	KindDup
	KindHap
	KindCollapse
	KindMisjoin
)

// StateSet is the ordered list of admissible states for one HMM,
// built from config.EmissionConfig.NumCollapseStates/IncludeMisjoin.
type StateSet struct {
	kinds          []Kind
	collapseMult   []int // multiplicity for collapse states, 0 for non-collapse
	names          []string
}

// NewStateSet builds the canonical ERR, DUP, HAP, COL_1..COL_K[, MSJ]
// ordering used throughout the core (binding tables, transition rows,
// parameter flattening order all key off this ordering).
func NewStateSet(numCollapse int, includeMisjoin bool) *StateSet {
	ss := &StateSet{}
	ss.add(KindErr, 0, "ERR")
	ss.add(KindDup, 0, "DUP")
	ss.add(KindHap, 0, "HAP")
	for k := 1; k <= numCollapse; k++ {
		ss.add(KindCollapse, k, fmt.Sprintf("COL%d", k))
	}
	if includeMisjoin {
		ss.add(KindMisjoin, 0, "MSJ")
	}
	return ss
}

func (ss *StateSet) add(k Kind, mult int, name string) {
	ss.kinds = append(ss.kinds, k)
	ss.collapseMult = append(ss.collapseMult, mult)
	ss.names = append(ss.names, name)
}

// N returns the number of states (excluding the start/termination cell).
func (ss *StateSet) N() int { return len(ss.kinds) }

func (ss *StateSet) Kind(s State) Kind { return ss.kinds[s] }

// CollapseMultiplicity returns k+1 (the number of collapsed haplotypes)
// for a COL_k state, or 0 for any other state.
func (ss *StateSet) CollapseMultiplicity(s State) int {
	if ss.kinds[s] != KindCollapse {
		return 0
	}
	return ss.collapseMult[s] + 1
}

func (ss *StateSet) Name(s State) string { return ss.names[s] }

func (ss *StateSet) Find(name string) (State, bool) {
	for i, n := range ss.names {
		if n == name {
			return State(i), true
		}
	}
	return 0, false
}

// Observation is a single per-window coverage record: an integer
// coverage value in [0, MaxCoverage], a region tag, and an optional
// annotation bitset (up to 32 bits), plus the auxiliary coverage-info
// fields Transition validity predicates gate on.
type Observation struct {
	Coverage         int
	HighMapqCoverage int
	HighClipCoverage int
	Region           int
	Annotations      uint32
	Contig           string
	Pos              int64 // position in the track file's own coordinates (not converted to 0-based), for summary-table scanning
	TruthLabel       int   // -1 if absent
	PredictionLabel  int   // -1 if absent
}

// HighMapqRatio returns the fraction of coverage that is high-MAPQ,
// used by the DUP/COL validity predicates (§4.5). Returns 0 when there
// is no coverage at all.
func (o Observation) HighMapqRatio() float64 {
	if o.Coverage <= 0 {
		return 0
	}
	return float64(o.HighMapqCoverage) / float64(o.Coverage)
}

// HighClipRatio returns the fraction of coverage that is highly
// clipped, used by the MSJ validity predicate.
func (o Observation) HighClipRatio() float64 {
	if o.Coverage <= 0 {
		return 0
	}
	return float64(o.HighClipCoverage) / float64(o.Coverage)
}

// HasAnnotation reports whether bit i (0-based, up to 31) is set.
func (o Observation) HasAnnotation(i int) bool {
	if i < 0 || i > 31 {
		return false
	}
	return o.Annotations&(1<<uint(i)) != 0
}

// Chunk is an ordered, immutable-after-construction sequence of
// observations for one contiguous (contig, region) run; length >= 1.
// Per original_source/test_chunks_creator.c, a chunk never spans a
// region or contig change.
type Chunk struct {
	Contig string
	Region int
	Obs    []Observation
}

// Len returns the chunk length L.
func (c *Chunk) Len() int { return len(c.Obs) }

// NewChunk validates and wraps an observation slice.
func NewChunk(contig string, region int, obs []Observation) (*Chunk, error) {
	if len(obs) == 0 {
		return nil, fmt.Errorf("track: chunk for contig %q region %d has zero length", contig, region)
	}
	return &Chunk{Contig: contig, Region: region, Obs: obs}, nil
}
