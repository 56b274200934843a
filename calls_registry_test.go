package promise

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func NewCallsRegistry(expectedCalls uint) *callsRegistry {
	registry := callsRegistry{
		expectedCalls: expectedCalls,
	}

	return &registry
}

// callsRegistry records the places handlers fire from, so tests can assert
// both the exact invocation order and that nothing fires twice. Handler
// invocation is synchronous, so no synchronization or waiting is needed.
type callsRegistry struct {
	registry      []string
	expectedCalls uint
}

func (r *callsRegistry) Register(place string) {
	if 0 == r.expectedCalls {
		panic("trying to register unexpected call: " + place)
	}

	r.registry = append(r.registry, place)
	r.expectedCalls--
}

func (r *callsRegistry) Summarize() string {
	return strings.Join(r.registry, "|")
}

func (r *callsRegistry) AssertCurrentCallsStackIs(t *testing.T, expectedRegistry string) {
	require.Equal(t, expectedRegistry, r.Summarize())
}

func (r *callsRegistry) AssertThereAreNCallsLeft(t *testing.T, callsLeftNumber uint) {
	require.Equal(t, callsLeftNumber, r.expectedCalls)
}
