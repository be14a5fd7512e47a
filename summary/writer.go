package summary

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

// Write serializes every table in list to the TSV layout of §6: prefix
// columns metric, granularity, categoryType, then category-1 name,
// category-2 name, row name (or its Unk sentinel), then one float per
// query-label column (plus the trailing Unk column). labelNames must
// have list's NumLabels entries; rows/columns beyond it are "Unk".
func Write(w io.Writer, list *List, metric, granularity, categoryType string, labelNames []string) error {
	bw := bufio.NewWriter(w)
	defer bw.Flush()

	header := []string{"metric", "granularity", "categoryType", "category1", "category2", "row"}
	for _, name := range labelNames {
		header = append(header, name)
	}
	header = append(header, "Unk")
	if _, err := fmt.Fprintln(bw, strings.Join(header, "\t")); err != nil {
		return err
	}

	type keyed struct {
		c1, c2 string
		t      *Table
	}
	var all []keyed
	list.Each(func(c1, c2 string, t *Table) { all = append(all, keyed{c1, c2, t}) })
	sort.Slice(all, func(i, j int) bool {
		if all[i].c1 != all[j].c1 {
			return all[i].c1 < all[j].c1
		}
		return all[i].c2 < all[j].c2
	})

	for _, k := range all {
		rows := append(append([]string(nil), labelNames...), "Unk")
		for row := 0; row <= k.t.NumLabels(); row++ {
			fields := []string{metric, granularity, categoryType, k.c1, k.c2, rows[row]}
			for col := 0; col <= k.t.NumLabels(); col++ {
				fields = append(fields, strconv.FormatFloat(k.t.Cell(row, col), 'g', -1, 64))
			}
			if _, err := fmt.Fprintln(bw, strings.Join(fields, "\t")); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// Read parses the TSV layout Write produces back into a List, for
// round-trip tests (§8). numLabels must equal the number of label
// names Write was called with; rows/columns reconstruct by position
// within the header.
func Read(r io.Reader, numLabels int) (*List, error) {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		return nil, fmt.Errorf("summary: empty TSV input")
	}
	header := strings.Split(scanner.Text(), "\t")
	if len(header) < 7 {
		return nil, fmt.Errorf("summary: malformed header: %q", header)
	}
	numCols := len(header) - 6

	list := NewList(numLabels)
	lineNo := 1
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 6+numCols {
			return nil, fmt.Errorf("summary: line %d: expected %d fields, got %d", lineNo, 6+numCols, len(fields))
		}
		c1, c2 := fields[3], fields[4]
		rowLabel := fields[5]
		row := numLabels
		for i := 0; i < numLabels; i++ {
			if header[6+i] == rowLabel {
				row = i
				break
			}
		}
		tbl := list.TableFor(c1, c2)
		for col := 0; col < numCols; col++ {
			v, err := strconv.ParseFloat(fields[6+col], 64)
			if err != nil {
				return nil, fmt.Errorf("summary: line %d: malformed value: %w", lineNo, err)
			}
			if v != 0 {
				tbl.Add(indexToLabel(row, numLabels), indexToLabel(col, numLabels), v)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("summary: reading TSV: %w", err)
	}
	return list, nil
}

// indexToLabel maps a table row/col index back to the label value
// Table.Add expects: the Unk index (== numLabels) becomes -1.
func indexToLabel(idx, numLabels int) int {
	if idx >= numLabels {
		return -1
	}
	return idx
}
