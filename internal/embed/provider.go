package embed

import "context"

// Provider turns free text into a vector for nearest-neighbor catalog
// search. Implementations must be side-effect-free and surface
// transient failures to the caller for per-item handling.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
