package features

import "github.com/crimson-sun/predictor/internal/model"

// Encoder maps match requests to one-hot feature vectors aligned with a
// Vocabulary.
type Encoder struct {
	vocab *Vocabulary
}

// NewEncoder creates an Encoder for the given vocabulary.
func NewEncoder(v *Vocabulary) *Encoder {
	return &Encoder{vocab: v}
}

// Vocabulary returns the vocabulary the encoder is anchored to.
func (e *Encoder) Vocabulary() *Vocabulary {
	return e.vocab
}

// Encode returns a vector of exactly Vocabulary().Len() entries. Columns the
// request produces but the vocabulary lacks are dropped; vocabulary columns
// the request doesn't produce stay 0.
func (e *Encoder) Encode(req model.MatchRequest) []float64 {
	vec := make([]float64, e.vocab.Len())
	for _, field := range model.Fields {
		if i, ok := e.vocab.Index(ColumnName(field, req.Value(field))); ok {
			vec[i] = 1
		}
	}
	return vec
}
