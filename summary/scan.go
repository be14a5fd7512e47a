package summary

// Block is one uniform-label run segment yielded by a BlockSource:
// [Start, End) bases on Contig, all carrying the same Annotated flag,
// RefLabel and QueryLabel (§4.9). Adjacent blocks sharing
// (Contig, Annotated, RefLabel) are merged by the scanner into one run
// even when QueryLabel differs between them — that's precisely how a
// single annotated segment can split its query-label composition
// (scenario 4: 60/40 split within one 100-base run).
type Block struct {
	Contig     string
	Start, End int64
	Annotated  bool
	RefLabel   int
	QueryLabel int
}

// Length returns End-Start.
func (b Block) Length() int64 { return b.End - b.Start }

// BlockSource yields blocks in contig, then position order.
type BlockSource interface {
	Next() (Block, bool)
}

// Mode selects base-level or overlap-based scanning (§4.9).
type Mode int

const (
	ModeBaseLevel Mode = iota
	ModeOverlapBased
)

// DefaultOverlapThreshold is the overlap-ratio cutoff used when a
// caller doesn't override it (§4.9).
const DefaultOverlapThreshold = 0.4

// run accumulates one maximal (contig, annotated, refLabel)-constant
// segment's per-query-label base counts before it is flushed into the
// table for its size bin.
type run struct {
	contig    string
	annotated bool
	refLabel  int
	start     int64
	end       int64
	counts    map[int]int64
}

func (r *run) length() int64 { return r.end - r.start }

func newRunFrom(b Block) *run {
	return &run{
		contig: b.Contig, annotated: b.Annotated, refLabel: b.RefLabel,
		start: b.Start, end: b.End,
		counts: map[int]int64{b.QueryLabel: b.Length()},
	}
}

func (r *run) matches(b Block) bool {
	return r.contig == b.Contig && r.annotated == b.Annotated && r.refLabel == b.RefLabel
}

func (r *run) extend(b Block) {
	r.end = b.End
	r.counts[b.QueryLabel] += b.Length()
}

// flush adds r's accumulated counts into tbl, the table Scan picked
// for r's category and the bin matching r's length, per mode.
func flush(r *run, tbl *Table, bins []Bin, mode Mode, overlapThreshold float64) {
	if r == nil || tbl == nil {
		return
	}
	length := r.length()
	if length <= 0 {
		return
	}

	switch mode {
	case ModeBaseLevel:
		for q, count := range r.counts {
			tbl.Add(r.refLabel, q, float64(count))
		}
	case ModeOverlapBased:
		anyHit := false
		for q, count := range r.counts {
			ratio := float64(count) / float64(length)
			if ratio >= overlapThreshold {
				tbl.Add(r.refLabel, q, 1)
				anyHit = true
			}
		}
		if !anyHit {
			tbl.Add(r.refLabel, -1, 1) // routes to the Unk column
		}
	}
	_ = bins // bin selection happens in Scan via per-length lookup before flush is called
}

// Scan consumes src to completion, merging adjacent same-run blocks
// and flushing each completed run into the Table selected by looking
// up its length against bins (category-2) among the tables of
// category1 (§4.9). End-of-contig and a change in Annotated or
// RefLabel flush the pending run; blocks with Annotated==false are
// skipped entirely (they don't belong to any annotation-category run).
func Scan(list *List, category1 string, src BlockSource, bins []Bin, mode Mode, overlapThreshold float64) {
	var cur *run

	flushCur := func() {
		if cur == nil {
			return
		}
		if bin, ok := FindBin(bins, cur.length()); ok {
			tbl := list.TableFor(category1, bin.Name)
			flush(cur, tbl, bins, mode, overlapThreshold)
		}
		cur = nil
	}

	for {
		b, ok := src.Next()
		if !ok {
			flushCur()
			return
		}
		if !b.Annotated {
			flushCur()
			continue
		}
		if cur != nil && cur.matches(b) {
			cur.extend(b)
			continue
		}
		flushCur()
		cur = newRunFrom(b)
	}
}
