package evaluator

import (
	"context"
	"fmt"

	"github.com/tenorlang/tenor/source/values"
)

// A FactProvider supplies fact values for contract evaluation. The
// contract is passed so implementations can inspect the declared fact
// ids and types to decide what to fetch; the returned map goes straight
// into AssembleFacts, so its values are decoded JSON.
type FactProvider interface {
	Provide(ctx context.Context, contract *values.Contract) (map[string]any, error)
}

// ProviderError wraps whatever went wrong inside a provider.
type ProviderError struct {
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("fact provider error: %s", e.Message)
}

// A StaticFactProvider returns the same fixed facts on every call.
// Useful in tests and wherever the facts are known up front.
type StaticFactProvider struct {
	facts map[string]any
}

func NewStaticFactProvider(facts map[string]any) *StaticFactProvider {
	return &StaticFactProvider{facts: facts}
}

func EmptyFactProvider() *StaticFactProvider {
	return &StaticFactProvider{facts: map[string]any{}}
}

func (p *StaticFactProvider) Provide(ctx context.Context, contract *values.Contract) (map[string]any, error) {
	out := make(map[string]any, len(p.facts))
	for k, v := range p.facts {
		out[k] = v
	}
	return out, nil
}
