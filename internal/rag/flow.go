package rag

import (
	"context"
	"sync"

	"github.com/firebase/genkit/go/core"
	"github.com/firebase/genkit/go/genkit"
)

// Input is the request payload for the recommendation flow.
type Input struct {
	Question string `json:"question"` // described road safety issue
}

// FlowName is the registered name of the recommendation flow in Genkit.
const FlowName = "roadsafe/recommend"

// Flow is the type alias for the recommendation Genkit flow.
type Flow = core.Flow[Input, Recommendation, struct{}]

// Package-level singleton: genkit.DefineFlow panics on re-registration, so
// the flow is defined at most once per process.
var (
	flowOnce sync.Once
	flow     *Flow
)

// NewFlow returns the recommendation flow singleton, defining it on first
// call. Subsequent calls return the existing flow and ignore the arguments.
func NewFlow(g *genkit.Genkit, pipeline *Pipeline) *Flow {
	flowOnce.Do(func() {
		flow = genkit.DefineFlow(g, FlowName,
			func(ctx context.Context, input Input) (Recommendation, error) {
				return pipeline.Recommend(ctx, input.Question)
			})
	})
	return flow
}

// ResetFlowForTesting resets the flow singleton so tests can define it with
// different configurations. Not safe for concurrent use.
func ResetFlowForTesting() {
	flowOnce = sync.Once{}
	flow = nil
}
