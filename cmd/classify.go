package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/flagger-go/covhmm/config"
	"github.com/flagger-go/covhmm/hmmcore"
	"github.com/flagger-go/covhmm/summary"
	"github.com/flagger-go/covhmm/track"
	"github.com/flagger-go/covhmm/trackio"
)

var (
	trackPath      string
	trackGzip      bool
	configPath     string
	binFilePath    string
	outputPath     string
	overlapBased   bool
	overlapThresh  float64
	refIsPrediction bool
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Run EM to convergence on a coverage track and emit a summary table",
	RunE:  runClassify,
}

func init() {
	classifyCmd.Flags().StringVar(&trackPath, "track", "", "path to the input coverage track (required)")
	classifyCmd.Flags().BoolVar(&trackGzip, "gzip", false, "track file is gzip-compressed")
	classifyCmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config overriding the defaults")
	classifyCmd.Flags().StringVar(&binFilePath, "bins", "", "path to a size-bin file (default: single ALL bin)")
	classifyCmd.Flags().StringVar(&outputPath, "out", "", "output summary TSV path (required)")
	classifyCmd.Flags().BoolVar(&overlapBased, "overlap-based", false, "use overlap-based scanning instead of base-level")
	classifyCmd.Flags().Float64Var(&overlapThresh, "overlap-threshold", summary.DefaultOverlapThreshold, "overlap ratio threshold")
	classifyCmd.Flags().BoolVar(&refIsPrediction, "ref-is-prediction", false, "use the prediction-label column as the table's ref axis instead of truth")
	classifyCmd.MarkFlagRequired("track")
	classifyCmd.MarkFlagRequired("out")
}

func runClassify(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.LoadFile(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}

	f, err := os.Open(trackPath)
	if err != nil {
		return fmt.Errorf("opening track file: %w", err)
	}
	defer f.Close()

	reader, err := trackio.Open(f, trackGzip)
	if err != nil {
		return fmt.Errorf("reading track header: %w", err)
	}
	header := reader.Header()

	chunksByRegion, err := trackio.ReadAllChunks(reader)
	if err != nil {
		return fmt.Errorf("reading track body: %w", err)
	}

	numRegions := cfg.NumRegions
	if len(header.RegionRefCov) > numRegions {
		numRegions = len(header.RegionRefCov)
	}
	refCov := make([]float64, numRegions)
	for i := range refCov {
		if v, ok := header.RegionRefCov[i]; ok {
			refCov[i] = v
		} else {
			refCov[i] = 30 // fallback baseline coverage when the header omits a region
		}
	}

	hmm, err := hmmcore.NewDefault(cfg, refCov)
	if err != nil {
		return fmt.Errorf("assembling HMM: %w", err)
	}

	reports := hmm.RunEM(chunksByRegion)
	last := reports[len(reports)-1]
	logrus.Infof("EM finished after %d iterations: logP=%.6f converged=%v", last.Iteration+1, last.LogLikelihood, last.Converged)

	bins, err := loadBins()
	if err != nil {
		return err
	}
	mode := summary.ModeBaseLevel
	if overlapBased {
		mode = summary.ModeOverlapBased
	}

	numLabels := header.NumLabels
	if numLabels == 0 {
		numLabels = hmm.N()
	}
	list := summary.NewList(numLabels)

	for region, chunks := range chunksByRegion {
		reg := hmm.Regions()[region]
		for _, chunk := range chunks {
			_, labels := hmm.Decode(reg, chunk)
			decorateWithDecodedLabels(chunk, labels)
			scanChunk(list, header, chunk, bins, mode, overlapThresh)
		}
	}

	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer out.Close()

	labelNames := make([]string, numLabels)
	for i := range labelNames {
		labelNames[i] = fmt.Sprintf("L%d", i)
	}
	if err := summary.Write(out, list, "confusion", "base", "annotation", labelNames); err != nil {
		return fmt.Errorf("writing summary table: %w", err)
	}
	return nil
}

// decorateWithDecodedLabels overwrites each observation's
// PredictionLabel with the HMM's own decoded state index when the
// caller didn't already want the file's own prediction column
// (refIsPrediction picks the file's prediction column as ref and
// leaves the decoded state out of the table entirely).
func decorateWithDecodedLabels(chunk *track.Chunk, labels []track.State) {
	if refIsPrediction {
		return
	}
	for i := range chunk.Obs {
		chunk.Obs[i].PredictionLabel = int(labels[i])
	}
}

func loadBins() ([]summary.Bin, error) {
	if binFilePath == "" {
		return []summary.Bin{{Start: 0, End: 1_000_000_000, Name: "ALL"}}, nil
	}
	f, err := os.Open(binFilePath)
	if err != nil {
		return nil, fmt.Errorf("opening bin file: %w", err)
	}
	defer f.Close()
	return summary.ParseBinFile(f)
}

// scanChunk feeds one chunk's observations into list, once for the
// whole-genome category and once per declared annotation, using
// refIsPrediction to choose which label column is the ref axis.
func scanChunk(list *summary.List, header trackio.Header, chunk *track.Chunk, bins []summary.Bin, mode summary.Mode, threshold float64) {
	categories := []struct {
		name string
		bit  int // -1 for whole genome (always annotated)
	}{{"whole_genome", -1}}

	var indices []int
	for idx := range header.AnnotationNames {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	for _, idx := range indices {
		categories = append(categories, struct {
			name string
			bit  int
		}{header.AnnotationNames[idx], idx})
	}

	for _, cat := range categories {
		src := &obsBlockSource{obs: chunk.Obs, pos: 0, bit: cat.bit}
		summary.Scan(list, cat.name, src, bins, mode, threshold)
	}
}

// obsBlockSource adapts a chunk's observation slice into
// summary.Block records of length 1, filtered by a single annotation
// bit (bit<0 means always-annotated, for the whole-genome category).
type obsBlockSource struct {
	obs []track.Observation
	pos int
	bit int
}

func (s *obsBlockSource) Next() (summary.Block, bool) {
	if s.pos >= len(s.obs) {
		return summary.Block{}, false
	}
	o := s.obs[s.pos]
	s.pos++
	ref, query := o.TruthLabel, o.PredictionLabel
	if refIsPrediction {
		ref, query = o.PredictionLabel, o.TruthLabel
	}
	annotated := s.bit < 0 || o.HasAnnotation(s.bit)
	return summary.Block{
		Contig: o.Contig, Start: o.Pos, End: o.Pos + 1,
		Annotated: annotated, RefLabel: ref, QueryLabel: query,
	}, true
}
