package checkpoint

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Checkpoint is an immutable snapshot of conversation state.
type Checkpoint struct {
	// ID is the storage identifier.
	ID string `json:"id"`
	// ThreadID groups checkpoints of one conversation.
	ThreadID string `json:"thread_id"`
	// CheckpointID identifies this snapshot and is never reused.
	CheckpointID string `json:"checkpoint_id"`
	// ParentCheckpointID is the snapshot this one extends. Empty means none.
	// The store does not check lineage.
	ParentCheckpointID string `json:"parent_checkpoint_id,omitempty"`
	// Data is the serialized state.
	Data json.RawMessage `json:"checkpoint_data"`
	// CreatedAt orders checkpoints within a thread.
	CreatedAt time.Time `json:"created_at"`
}

// New creates a checkpoint for threadID with fresh identifiers.
// data must already be JSON-serialized.
func New(threadID string, data []byte) *Checkpoint {
	return &Checkpoint{
		ID:           uuid.NewString(),
		ThreadID:     threadID,
		CheckpointID: uuid.NewString(),
		Data:         data,
		CreatedAt:    time.Now().UTC(),
	}
}

// WithParent sets the parent checkpoint reference.
func (c *Checkpoint) WithParent(checkpointID string) *Checkpoint {
	c.ParentCheckpointID = checkpointID
	return c
}

// Validate reports whether the checkpoint can be stored.
func (c *Checkpoint) Validate() error {
	switch {
	case c == nil:
		return fmt.Errorf("%w: nil", ErrInvalidCheckpoint)
	case c.ID == "":
		return fmt.Errorf("%w: empty id", ErrInvalidCheckpoint)
	case c.ThreadID == "":
		return fmt.Errorf("%w: empty thread_id", ErrInvalidCheckpoint)
	case c.CheckpointID == "":
		return fmt.Errorf("%w: empty checkpoint_id", ErrInvalidCheckpoint)
	case !json.Valid(c.Data):
		return fmt.Errorf("%w: checkpoint_data is not valid JSON", ErrInvalidCheckpoint)
	}
	return nil
}

// Clone returns a deep copy.
func (c *Checkpoint) Clone() *Checkpoint {
	cp := *c
	cp.Data = append(json.RawMessage(nil), c.Data...)
	return &cp
}

// Marshal serializes a checkpoint to JSON.
func (c *Checkpoint) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// Unmarshal deserializes a checkpoint from JSON.
func Unmarshal(data []byte) (*Checkpoint, error) {
	var c Checkpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
