// Package summary implements SummaryTableList (C9): confusion tables
// stratified by (annotation-or-region category, size bin), with rows
// of ref-labels and columns of query-labels, an Unk row/column for
// unlabeled positions, and both base-level and overlap-based scanning
// protocols (§4.9).
package summary

import "sync"

// LabelSource names which of the two label channels supplies the
// table's ref-label axis; the other channel becomes the query-label
// axis. Table and List neither store nor consult it: the choice is
// made by whoever builds each Block's RefLabel/QueryLabel (the classify
// command's --ref-is-prediction flag), so one scan fills tables for
// one choice only.
type LabelSource int

const (
	RefIsTruth LabelSource = iota
	RefIsPrediction
)

// Table is one (category-1, category-2) confusion matrix: numLabels+1
// rows (last is Unk) by numLabels+1 columns (last is Unk).
type Table struct {
	mu        sync.Mutex
	numLabels int
	cells     [][]float64
}

// NewTable allocates an empty (numLabels+1)x(numLabels+1) table.
func NewTable(numLabels int) *Table {
	size := numLabels + 1
	cells := make([][]float64, size)
	for i := range cells {
		cells[i] = make([]float64, size)
	}
	return &Table{numLabels: numLabels, cells: cells}
}

// unkIndex is the reserved last row/column.
func (t *Table) unkIndex() int { return t.numLabels }

// rowIndex maps a ref-label to its row, routing negative/out-of-range
// labels to the Unk row.
func (t *Table) rowIndex(label int) int {
	if label < 0 || label >= t.numLabels {
		return t.unkIndex()
	}
	return label
}

func (t *Table) colIndex(label int) int {
	if label < 0 || label >= t.numLabels {
		return t.unkIndex()
	}
	return label
}

// Add folds weight into cell (refLabel, queryLabel), thread-safe
// (§5: SummaryTableList increment is mutex-per-table).
func (t *Table) Add(refLabel, queryLabel int, weight float64) {
	if weight == 0 {
		return
	}
	r, c := t.rowIndex(refLabel), t.colIndex(queryLabel)
	t.mu.Lock()
	t.cells[r][c] += weight
	t.mu.Unlock()
}

// Cell returns the current value at (refLabel, queryLabel); pass
// NumLabels() for either index to read the Unk row/column.
func (t *Table) Cell(row, col int) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cells[row][col]
}

// NumLabels returns the number of non-Unk labels this table indexes.
func (t *Table) NumLabels() int { return t.numLabels }

// List is a SummaryTableList: one Table per (category-1, category-2)
// pair, created lazily on first touch.
type List struct {
	mu        sync.Mutex
	numLabels int
	tables    map[string]map[string]*Table
}

// NewList allocates an empty SummaryTableList for tables of numLabels
// non-Unk labels.
func NewList(numLabels int) *List {
	return &List{numLabels: numLabels, tables: make(map[string]map[string]*Table)}
}

// TableFor returns the table for (cat1, cat2), creating it on first access.
func (l *List) TableFor(cat1, cat2 string) *Table {
	l.mu.Lock()
	defer l.mu.Unlock()
	byC2, ok := l.tables[cat1]
	if !ok {
		byC2 = make(map[string]*Table)
		l.tables[cat1] = byC2
	}
	t, ok := byC2[cat2]
	if !ok {
		t = NewTable(l.numLabels)
		byC2[cat2] = t
	}
	return t
}

// Each calls fn once per (cat1, cat2, table) currently present, in no
// particular order.
func (l *List) Each(fn func(cat1, cat2 string, t *Table)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for c1, byC2 := range l.tables {
		for c2, t := range byC2 {
			fn(c1, c2, t)
		}
	}
}
