package output

import (
	"context"

	"github.com/crimson-sun/predictor/internal/model"
)

// Output defines the interface for batch prediction destinations.
type Output interface {
	Write(ctx context.Context, p model.FixturePrediction) error
	Close() error
}

// Discarder is implemented by outputs that can drop everything written so
// far instead of publishing it. Callers use it when a batch aborts; Close
// must still be called afterwards.
type Discarder interface {
	Discard() error
}
