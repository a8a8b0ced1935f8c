package entity

// MaxParallelChunks bounds chunk fan-out. The GPU platform allows 10
// concurrent instances; two are reserved for the orchestrator and transient
// overlap.
const MaxParallelChunks = 8

// ChunkBounds is one contiguous slice [Start, Start+Length) of the global
// frame sequence.
type ChunkBounds struct {
	Start  int
	Length int
}

// PartitionFrames splits numFrames into at most maxParallel contiguous
// near-equal chunks: num_chunks = min(maxParallel, numFrames), chunk size
// ceil(numFrames/num_chunks), last chunk may be shorter. Concatenating the
// bounds reconstructs the full sequence exactly.
func PartitionFrames(numFrames, maxParallel int) []ChunkBounds {
	if numFrames <= 0 || maxParallel <= 0 {
		return nil
	}

	numChunks := maxParallel
	if numFrames < numChunks {
		numChunks = numFrames
	}
	chunkSize := (numFrames + numChunks - 1) / numChunks

	var bounds []ChunkBounds
	for start := 0; start < numFrames; start += chunkSize {
		length := chunkSize
		if start+length > numFrames {
			length = numFrames - start
		}
		bounds = append(bounds, ChunkBounds{Start: start, Length: length})
	}
	return bounds
}

// Chunk is one unit of parallel segmentation work: a contiguous ordered
// sub-sequence of the video's frames.
type Chunk struct {
	Index  int
	Frames [][]byte
}

// BuildChunks materializes chunks from the full ordered frame list.
func BuildChunks(frames [][]byte, bounds []ChunkBounds) []Chunk {
	chunks := make([]Chunk, 0, len(bounds))
	for i, b := range bounds {
		chunks = append(chunks, Chunk{
			Index:  i,
			Frames: frames[b.Start : b.Start+b.Length],
		})
	}
	return chunks
}
