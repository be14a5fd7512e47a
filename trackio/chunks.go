package trackio

import "github.com/flagger-go/covhmm/track"

// BuildChunks splits a flat observation stream into track.Chunks that
// never span a contig or region change (original_source's
// test_chunks_creator.c splits on exactly these two conditions).
// Observations must already be ordered by contig then position.
func BuildChunks(obs []track.Observation) ([]*track.Chunk, error) {
	var chunks []*track.Chunk
	start := 0
	for i := 1; i <= len(obs); i++ {
		if i == len(obs) || obs[i].Contig != obs[start].Contig || obs[i].Region != obs[start].Region {
			c, err := track.NewChunk(obs[start].Contig, obs[start].Region, obs[start:i])
			if err != nil {
				return nil, err
			}
			chunks = append(chunks, c)
			start = i
		}
	}
	return chunks, nil
}

// ReadAllChunks drains a Reader's full body into contiguous chunks,
// grouped per-region for the caller (e.g. hmmcore.RunEM's
// chunksByRegion argument).
func ReadAllChunks(r *Reader) (map[int][]*track.Chunk, error) {
	var obs []track.Observation
	for {
		rec, ok, err := r.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		obs = append(obs, ToObservations(rec)...)
	}
	chunks, err := BuildChunks(obs)
	if err != nil {
		return nil, err
	}
	byRegion := make(map[int][]*track.Chunk)
	for _, c := range chunks {
		byRegion[c.Region] = append(byRegion[c.Region], c)
	}
	return byRegion, nil
}
