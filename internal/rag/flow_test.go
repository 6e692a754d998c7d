package rag

import (
	"context"
	"testing"

	"github.com/firebase/genkit/go/genkit"

	"github.com/roadsafe/roadsafe/internal/log"
)

func TestNewFlowSingleton(t *testing.T) {
	t.Cleanup(ResetFlowForTesting)

	g := genkit.Init(context.Background())
	p1 := New(g, "googleai/test-model", 0, &stubSearcher{}, 4, log.NewNop())
	p2 := New(g, "googleai/other-model", 0, &stubSearcher{}, 4, log.NewNop())

	f1 := NewFlow(g, p1)
	if f1 == nil {
		t.Fatal("NewFlow() returned nil")
	}

	// Second call returns the existing flow and ignores its arguments.
	f2 := NewFlow(g, p2)
	if f1 != f2 {
		t.Error("NewFlow() returned a different flow on second call")
	}
}
