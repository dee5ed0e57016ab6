package flowgraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bytebuddhi/agentgraph/pkg/flowgraph/checkpoint"
)

// LoadLatest decodes the newest checkpoint of a thread into S.
// Returns ErrNoCheckpoints when the thread has none, and ErrDeserializeState
// when the stored snapshot does not decode into S.
//
//	prev, cp, err := flowgraph.LoadLatest[State](ctx, store, "thread-1")
//	if errors.Is(err, flowgraph.ErrNoCheckpoints) {
//	    // new conversation
//	}
func LoadLatest[S any](ctx context.Context, store checkpoint.Store, threadID string) (S, *checkpoint.Checkpoint, error) {
	var zero S

	if store == nil {
		return zero, nil, fmt.Errorf("%w: no store configured", ErrNoCheckpoints)
	}

	cp, err := store.Latest(ctx, threadID)
	if errors.Is(err, checkpoint.ErrNotFound) {
		return zero, nil, fmt.Errorf("%w: %s", ErrNoCheckpoints, threadID)
	}
	if err != nil {
		return zero, nil, &CheckpointError{ThreadID: threadID, Op: "load", Err: err}
	}

	var state S
	if err := json.Unmarshal(cp.Data, &state); err != nil {
		return zero, cp, fmt.Errorf("%w: %v", ErrDeserializeState, err)
	}
	return state, cp, nil
}
