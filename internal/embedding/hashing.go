package embedding

import (
	"context"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// HashingModelName identifies the built-in feature hashing model.
const HashingModelName = "hashing-bow-v1"

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "of": {}, "on": {}, "in": {}, "at": {},
	"and": {}, "or": {}, "with": {}, "to": {}, "is": {}, "are": {},
}

// HashingModel is a deterministic bag-of-words model. Every token maps to a
// pseudo-random vector seeded by its xxhash; a text is the mean of its token
// vectors, normalized. Texts sharing words score high, unrelated texts near
// zero. It needs no downloads, which makes it the development default.
type HashingModel struct {
	dim int
}

// NewHashingModel creates a HashingModel producing dim-sized vectors.
func NewHashingModel(dim int) *HashingModel {
	return &HashingModel{dim: dim}
}

// EmbedQuery embeds text.
func (m *HashingModel) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return m.embed(ctx, text)
}

// EmbedPassage embeds text. Queries and passages share one space.
func (m *HashingModel) EmbedPassage(ctx context.Context, text string) ([]float32, error) {
	return m.embed(ctx, text)
}

// Dimension returns the vector size.
func (m *HashingModel) Dimension() int {
	return m.dim
}

// Close is a no-op.
func (m *HashingModel) Close() error {
	return nil
}

func (m *HashingModel) embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil, ErrEmptyText
	}

	vectors := make([][]float32, 0, len(tokens))
	for _, tok := range tokens {
		vectors = append(vectors, m.tokenVector(tok))
	}

	return Normalize(MeanPool(vectors)), nil
}

// tokenVector expands the token hash into dim values in [-1, 1) with splitmix64.
func (m *HashingModel) tokenVector(token string) []float32 {
	state := xxhash.Sum64String(token)
	out := make([]float32, m.dim)
	for i := range out {
		state += 0x9e3779b97f4a7c15
		z := state
		z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
		z = (z ^ (z >> 27)) * 0x94d049bb133111eb
		z ^= z >> 31
		out[i] = float32(z>>11)/float32(1<<53)*2 - 1
	}
	return Normalize(out)
}

// Tokenize lowercases text, splits on anything that is not a letter or digit
// and drops stopwords.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := fields[:0]
	for _, f := range fields {
		if _, skip := stopwords[f]; skip {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}
