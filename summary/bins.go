package summary

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Bin is one half-open size stratum [Start, End) used to bucket run
// lengths (§4.9, §6). Start/End are in base-pair units.
type Bin struct {
	Start int64
	End   int64
	Name  string
}

// Contains reports whether length falls in [Start, End).
func (b Bin) Contains(length int64) bool {
	return length >= b.Start && length < b.End
}

// defaultBins is used when no bin file is supplied: a single "ALL" bin
// covering [0, 1e9) per §6.
func defaultBins() []Bin {
	return []Bin{{Start: 0, End: 1_000_000_000, Name: "ALL"}}
}

// ParseBinFile reads a tab-delimited `[start, end, name]` bin file
// (§6). Rows are returned in file order; the caller is responsible for
// ensuring the ranges the scanner needs are covered (a length with no
// matching bin is dropped from the run's contribution, not fatal).
func ParseBinFile(r io.Reader) ([]Bin, error) {
	var bins []Bin
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 3 {
			return nil, fmt.Errorf("summary: bin file line %d: expected 3 tab-delimited fields, got %d", lineNo, len(fields))
		}
		start, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("summary: bin file line %d: malformed start: %w", lineNo, err)
		}
		end, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("summary: bin file line %d: malformed end: %w", lineNo, err)
		}
		if end <= start {
			return nil, fmt.Errorf("summary: bin file line %d: end must be > start", lineNo)
		}
		bins = append(bins, Bin{Start: start, End: end, Name: fields[2]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("summary: reading bin file: %w", err)
	}
	if len(bins) == 0 {
		return nil, fmt.Errorf("summary: bin file contained no rows")
	}
	return bins, nil
}

// FindBin returns the first bin containing length, or ok=false if no
// bin covers it.
func FindBin(bins []Bin, length int64) (Bin, bool) {
	for _, b := range bins {
		if b.Contains(length) {
			return b, true
		}
	}
	return Bin{}, false
}
