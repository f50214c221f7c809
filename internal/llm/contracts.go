package llm

import "context"

// Completer is the text-generation collaborator the extraction and
// classification operations depend on.
type Completer interface {
	Complete(ctx context.Context, system, user string, temperature float32) (string, error)
}
