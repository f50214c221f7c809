// Package embed provides the embedding contract the similarity index
// consumes, with an OpenAI-compatible client and a deterministic offline
// provider.
package embed

import "context"

// Provider computes fixed-length vector representations of texts.
type Provider interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
