// Package trackio implements the external interfaces of §6: a
// line-oriented text/gzip track reader, a bin-file reader (delegated
// to package summary), an annotation JSON reader, and the output
// summary TSV writer (delegated to package summary). It is
// deliberately thin: no alignment parsing, no on-disk binary layout —
// just the logical schema the core consumes and produces.
package trackio

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/flagger-go/covhmm/track"
)

// Header carries the track file's declared schema: annotation names
// keyed by 0-based index, per-region reference coverage, label count,
// which optional label columns are present, and the start-coordinate
// convention (§6).
type Header struct {
	AnnotationNames  map[int]string
	RegionRefCov     map[int]float64
	NumLabels        int
	TruthAvailable   bool
	PredictionAvailable bool
	ZeroBasedStart   bool
}

// Record is one body line of a track file: a closed interval
// [Start, End] on Contig (coordinate convention per Header.ZeroBasedStart)
// carrying constant coverage/annotation/region/label values.
type Record struct {
	Contig           string
	Start, End       int64 // inclusive-inclusive as read; see Header.ZeroBasedStart
	Coverage         int
	HighMapqCoverage int
	HighClipCoverage int
	Annotations      uint32
	Region           int
	TruthLabel       int // -1 if absent
	PredictionLabel  int // -1 if absent
}

// Length returns the number of positions the record spans.
func (r Record) Length() int64 { return r.End - r.Start + 1 }

// Open wraps r in a gzip reader when gzipped is set and returns a
// ready Reader positioned after the header.
func Open(r io.Reader, gzipped bool) (*Reader, error) {
	var src io.Reader = r
	if gzipped {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("trackio: opening gzip stream: %w", err)
		}
		src = gz
	}
	br := bufio.NewScanner(src)
	br.Buffer(make([]byte, 64*1024), 1<<20)

	header, firstBody, err := readHeader(br)
	if err != nil {
		return nil, err
	}
	return &Reader{scanner: br, header: header, pending: firstBody}, nil
}

func readHeader(scanner *bufio.Scanner) (Header, string, error) {
	h := Header{AnnotationNames: make(map[int]string), RegionRefCov: make(map[int]float64)}
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "#") {
			return h, line, nil
		}
		fields := strings.Split(strings.TrimPrefix(line, "#"), "\t")
		switch fields[0] {
		case "ANNOTATION":
			if len(fields) != 3 {
				return h, "", fmt.Errorf("trackio: malformed #ANNOTATION line %q", line)
			}
			idx, err := strconv.Atoi(fields[1])
			if err != nil {
				return h, "", fmt.Errorf("trackio: malformed #ANNOTATION index: %w", err)
			}
			h.AnnotationNames[idx] = fields[2]
		case "REGION":
			if len(fields) != 3 {
				return h, "", fmt.Errorf("trackio: malformed #REGION line %q", line)
			}
			idx, err := strconv.Atoi(fields[1])
			if err != nil {
				return h, "", fmt.Errorf("trackio: malformed #REGION index: %w", err)
			}
			cov, err := strconv.ParseFloat(fields[2], 64)
			if err != nil {
				return h, "", fmt.Errorf("trackio: malformed #REGION coverage: %w", err)
			}
			h.RegionRefCov[idx] = cov
		case "LABELS":
			if len(fields) != 2 {
				return h, "", fmt.Errorf("trackio: malformed #LABELS line %q", line)
			}
			n, err := strconv.Atoi(fields[1])
			if err != nil {
				return h, "", fmt.Errorf("trackio: malformed #LABELS count: %w", err)
			}
			h.NumLabels = n
		case "TRUTH":
			h.TruthAvailable = len(fields) == 2 && fields[1] == "true"
		case "PREDICTION":
			h.PredictionAvailable = len(fields) == 2 && fields[1] == "true"
		case "COORD":
			h.ZeroBasedStart = len(fields) == 2 && fields[1] == "0BASED"
		default:
			// Forward-compatible: unknown header directives are ignored
			// rather than treated as fatal (§7 tolerates unknown metadata).
		}
	}
	if err := scanner.Err(); err != nil {
		return h, "", fmt.Errorf("trackio: reading header: %w", err)
	}
	return h, "", nil
}

// Reader yields Records from a track file's body.
type Reader struct {
	scanner *bufio.Scanner
	header  Header
	pending string // first non-header line, read while scanning the header
	lineNo  int
}

// Header returns the parsed file header.
func (r *Reader) Header() Header { return r.header }

// Next returns the next body record, or ok=false at EOF.
func (r *Reader) Next() (Record, bool, error) {
	var line string
	if r.pending != "" {
		line, r.pending = r.pending, ""
	} else if r.scanner.Scan() {
		line = r.scanner.Text()
	} else {
		if err := r.scanner.Err(); err != nil {
			return Record{}, false, fmt.Errorf("trackio: reading body: %w", err)
		}
		return Record{}, false, nil
	}
	r.lineNo++
	if strings.TrimSpace(line) == "" {
		return r.Next()
	}
	rec, err := r.parseRecord(line)
	if err != nil {
		return Record{}, false, fmt.Errorf("trackio: body line %d: %w", r.lineNo, err)
	}
	return rec, true, nil
}

func (r *Reader) parseRecord(line string) (Record, error) {
	fields := strings.Split(line, "\t")
	minFields := 8
	want := minFields
	if r.header.TruthAvailable {
		want++
	}
	if r.header.PredictionAvailable {
		want++
	}
	if len(fields) != want {
		return Record{}, fmt.Errorf("expected %d fields, got %d", want, len(fields))
	}

	atoi := func(s string) (int, error) { return strconv.Atoi(s) }
	atoi64 := func(s string) (int64, error) { return strconv.ParseInt(s, 10, 64) }

	start, err := atoi64(fields[1])
	if err != nil {
		return Record{}, fmt.Errorf("malformed start: %w", err)
	}
	end, err := atoi64(fields[2])
	if err != nil {
		return Record{}, fmt.Errorf("malformed end: %w", err)
	}
	coverage, err := atoi(fields[3])
	if err != nil {
		return Record{}, fmt.Errorf("malformed coverage: %w", err)
	}
	hiMapq, err := atoi(fields[4])
	if err != nil {
		return Record{}, fmt.Errorf("malformed high-mapq coverage: %w", err)
	}
	hiClip, err := atoi(fields[5])
	if err != nil {
		return Record{}, fmt.Errorf("malformed high-clip coverage: %w", err)
	}
	annotBits, err := strconv.ParseUint(fields[6], 10, 32)
	if err != nil {
		return Record{}, fmt.Errorf("malformed annotation bitset: %w", err)
	}
	region, err := atoi(fields[7])
	if err != nil {
		return Record{}, fmt.Errorf("malformed region index: %w", err)
	}

	rec := Record{
		Contig: fields[0], Start: start, End: end,
		Coverage: coverage, HighMapqCoverage: hiMapq, HighClipCoverage: hiClip,
		Annotations: uint32(annotBits), Region: region,
		TruthLabel: -1, PredictionLabel: -1,
	}

	next := minFields
	if r.header.TruthAvailable {
		v, err := atoi(fields[next])
		if err != nil {
			return Record{}, fmt.Errorf("malformed truth label: %w", err)
		}
		rec.TruthLabel = v
		next++
	}
	if r.header.PredictionAvailable {
		v, err := atoi(fields[next])
		if err != nil {
			return Record{}, fmt.Errorf("malformed prediction label: %w", err)
		}
		rec.PredictionLabel = v
	}
	return rec, nil
}

// ToObservations expands one Record into one track.Observation per
// position it spans, since the HMM operates over discrete per-position
// observations while a track file row may cover a uniform run.
func ToObservations(rec Record) []track.Observation {
	out := make([]track.Observation, 0, rec.Length())
	for pos := rec.Start; pos <= rec.End; pos++ {
		out = append(out, track.Observation{
			Coverage:         rec.Coverage,
			HighMapqCoverage: rec.HighMapqCoverage,
			HighClipCoverage: rec.HighClipCoverage,
			Region:           rec.Region,
			Annotations:      rec.Annotations,
			Contig:           rec.Contig,
			Pos:              pos,
			TruthLabel:       rec.TruthLabel,
			PredictionLabel:  rec.PredictionLabel,
		})
	}
	return out
}
