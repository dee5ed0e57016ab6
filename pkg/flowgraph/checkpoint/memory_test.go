package checkpoint_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bytebuddhi/agentgraph/pkg/flowgraph/checkpoint"
)

func TestMemoryStore_Len(t *testing.T) {
	ctx := context.Background()
	store := checkpoint.NewMemoryStore()
	defer store.Close()

	assert.Equal(t, 0, store.Len())
	require.NoError(t, store.Put(ctx, checkpoint.New("a", []byte("{}"))))
	require.NoError(t, store.Put(ctx, checkpoint.New("a", []byte("{}"))))
	require.NoError(t, store.Put(ctx, checkpoint.New("b", []byte("{}"))))
	assert.Equal(t, 3, store.Len())

	require.NoError(t, store.DeleteThread(ctx, "a"))
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := checkpoint.NewMemoryStore()
	defer store.Close()

	cp := checkpoint.New("t", []byte(`{"v":1}`))
	require.NoError(t, store.Put(ctx, cp))
	cp.Data[5] = '9'

	got, err := store.Latest(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, `{"v":1}`, string(got.Data))

	got.Data[5] = '7'
	again, err := store.Latest(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, `{"v":1}`, string(again.Data))
}

func TestMemoryStore_DuplicateStorageID(t *testing.T) {
	ctx := context.Background()
	store := checkpoint.NewMemoryStore()
	defer store.Close()

	first := checkpoint.New("t", []byte("{}"))
	require.NoError(t, store.Put(ctx, first))

	second := checkpoint.New("t", []byte("{}"))
	second.ID = first.ID
	assert.ErrorIs(t, store.Put(ctx, second), checkpoint.ErrDuplicateCheckpoint)
}
