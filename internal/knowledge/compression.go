package knowledge

import (
	"math"
	"sort"
)

// EmbeddingCompression names one of the three embedding-specific
// compression schemes spec §4.8 requires, distinct from
// coretypes.CompressionScheme (which compresses a context's raw
// content bytes, not its embedding).
type EmbeddingCompression string

const (
	CompressQuantize8        EmbeddingCompression = "quantize_8bit"
	CompressDimensionality   EmbeddingCompression = "dimensionality_reduction"
	CompressSparsify         EmbeddingCompression = "sparsify"
)

// CompressedEmbedding carries a compressed embedding plus enough
// metadata to approximately round-trip it and to report how lossy the
// compression was.
type CompressedEmbedding struct {
	Scheme             EmbeddingCompression
	Dimension          int
	Quantized          []int8     `json:"quantized,omitempty"`
	ReducedValues      []float64  `json:"reducedValues,omitempty"`
	ReducedIndices     []int      `json:"reducedIndices,omitempty"`
	SparseValues       []float64  `json:"sparseValues,omitempty"`
	SparseIndices      []int      `json:"sparseIndices,omitempty"`
	CompressionRatio   float64
	EstimatedQualityLoss float64
}

// Compress applies scheme to embedding.
func Compress(embedding []float64, scheme EmbeddingCompression) CompressedEmbedding {
	switch scheme {
	case CompressDimensionality:
		return compressDimensionality(embedding)
	case CompressSparsify:
		return compressSparsify(embedding)
	default:
		return compressQuantize(embedding)
	}
}

// compressQuantize maps each 32/64-bit float onto an 8-bit signed
// range, exactly as the "quantization (32-bit→8-bit)" scheme names.
func compressQuantize(embedding []float64) CompressedEmbedding {
	out := make([]int8, len(embedding))
	var lossSq float64
	for i, v := range embedding {
		clamped := v
		if clamped > 1 {
			clamped = 1
		}
		if clamped < -1 {
			clamped = -1
		}
		q := int8(clamped * 127)
		out[i] = q
		restored := float64(q) / 127.0
		lossSq += (restored - v) * (restored - v)
	}
	return CompressedEmbedding{
		Scheme:               CompressQuantize8,
		Dimension:            len(embedding),
		Quantized:            out,
		CompressionRatio:      4.0, // float32 -> int8
		EstimatedQualityLoss: meanSqrt(lossSq, len(embedding)),
	}
}

// compressDimensionality keeps the top half of components by
// magnitude, per "dimensionality reduction (top-k by magnitude)".
func compressDimensionality(embedding []float64) CompressedEmbedding {
	k := (len(embedding) + 1) / 2
	idx := rankByMagnitude(embedding)[:k]
	sort.Ints(idx)

	values := make([]float64, k)
	var lossSq float64
	kept := make(map[int]bool, k)
	for i, pos := range idx {
		values[i] = embedding[pos]
		kept[pos] = true
	}
	for i, v := range embedding {
		if !kept[i] {
			lossSq += v * v
		}
	}

	return CompressedEmbedding{
		Scheme:               CompressDimensionality,
		Dimension:            len(embedding),
		ReducedValues:        values,
		ReducedIndices:       idx,
		CompressionRatio:      float64(len(embedding)) / float64(k),
		EstimatedQualityLoss: meanSqrt(lossSq, len(embedding)),
	}
}

// compressSparsify keeps the top 25% of components by magnitude with
// their indices, per "sparsification (top-25% retained with indices)".
func compressSparsify(embedding []float64) CompressedEmbedding {
	k := len(embedding) / 4
	if k == 0 && len(embedding) > 0 {
		k = 1
	}
	idx := rankByMagnitude(embedding)[:k]
	sort.Ints(idx)

	values := make([]float64, k)
	var lossSq float64
	kept := make(map[int]bool, k)
	for i, pos := range idx {
		values[i] = embedding[pos]
		kept[pos] = true
	}
	for i, v := range embedding {
		if !kept[i] {
			lossSq += v * v
		}
	}

	var ratio float64
	if k > 0 {
		ratio = float64(len(embedding)) / float64(k)
	}
	return CompressedEmbedding{
		Scheme:               CompressSparsify,
		Dimension:            len(embedding),
		SparseValues:         values,
		SparseIndices:        idx,
		CompressionRatio:      ratio,
		EstimatedQualityLoss: meanSqrt(lossSq, len(embedding)),
	}
}

func rankByMagnitude(embedding []float64) []int {
	idx := make([]int, len(embedding))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool {
		return abs64(embedding[idx[i]]) > abs64(embedding[idx[j]])
	})
	return idx
}

func abs64(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func meanSqrt(sumSq float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return math.Sqrt(sumSq / float64(n))
}

// Decompress reconstructs an approximate embedding of the original
// dimension from a CompressedEmbedding, zero-filling dropped components.
func Decompress(c CompressedEmbedding) []float64 {
	out := make([]float64, c.Dimension)
	switch c.Scheme {
	case CompressQuantize8:
		for i, q := range c.Quantized {
			out[i] = float64(q) / 127.0
		}
	case CompressDimensionality:
		for i, pos := range c.ReducedIndices {
			out[pos] = c.ReducedValues[i]
		}
	case CompressSparsify:
		for i, pos := range c.SparseIndices {
			out[pos] = c.SparseValues[i]
		}
	}
	return out
}
