package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

const DefaultHashDimension = 256

// HashEmbedder maps text into a fixed-size space by hashing its terms.
// It needs no model or corpus preparation, so the same instance gives the same
// vector for the same text in every process.
type HashEmbedder struct {
	dimension    int
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

// NewHashEmbedder creates a hashing embedder producing vectors of the given dimension.
func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = DefaultHashDimension
	}
	return &HashEmbedder{
		dimension:    dimension,
		tokenPattern: regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`),
		stopwords:    defaultStopwords(),
	}
}

// Dimension returns the dimensionality of the produced embedding vectors.
func (e *HashEmbedder) Dimension() int { return e.dimension }

func (e *HashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.vector(text), nil
}

func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.vector(t)
	}
	return out, nil
}

// vector hashes unigrams and adjacent bigrams into signed buckets, then L2 normalizes.
// Text with no content tokens yields the zero vector.
func (e *HashEmbedder) vector(text string) []float32 {
	acc := make([]float64, e.dimension)
	tokens := e.tokenize(text)
	for i, tok := range tokens {
		e.add(acc, tok, 1)
		if i > 0 {
			e.add(acc, tokens[i-1]+" "+tok, 0.5)
		}
	}

	norm := 0.0
	for _, v := range acc {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	vec := make([]float32, e.dimension)
	if norm == 0 {
		return vec
	}
	for i, v := range acc {
		vec[i] = float32(v / norm)
	}
	return vec
}

func (e *HashEmbedder) add(acc []float64, term string, weight float64) {
	h := fnv.New64a()
	h.Write([]byte(term))
	sum := h.Sum64()

	idx := int(sum % uint64(e.dimension))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	acc[idx] += weight
}

func (e *HashEmbedder) tokenize(text string) []string {
	raw := e.tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := e.stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "for", "to", "of", "in", "on", "at", "by", "with",
		"as", "is", "are", "was", "were", "be", "been", "it", "this", "that", "these", "those", "from", "so",
		"into", "about", "can", "will", "just", "do", "does", "did",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
