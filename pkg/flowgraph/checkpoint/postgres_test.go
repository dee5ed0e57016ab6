package checkpoint_test

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bytebuddhi/agentgraph/pkg/flowgraph/checkpoint"
)

var checkpointColumns = []string{
	"id", "thread_id", "checkpoint_id", "parent_checkpoint_id", "checkpoint_data", "created_at",
}

func newPostgresMock(t *testing.T) (*checkpoint.PostgresStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return checkpoint.NewPostgresStore(db), mock
}

func TestPostgresStore_Migrate(t *testing.T) {
	store, mock := newPostgresMock(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS agent_checkpoints").
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, store.Migrate(context.Background()))

	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("permission denied"))
	err := store.Migrate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")

	assert.NoError(t, mock.ExpectationsWereMet())
}

// A table created by an earlier schema has no seq column; Migrate must add
// it before List can order by it.
func TestPostgresStore_MigrateAddsSeqToExistingTable(t *testing.T) {
	store, mock := newPostgresMock(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS agent_checkpoints .* ALTER TABLE agent_checkpoints ADD COLUMN IF NOT EXISTS seq BIGSERIAL; CREATE INDEX`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	require.NoError(t, store.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())

	assert.Contains(t, checkpoint.PostgresMigration, "ADD COLUMN IF NOT EXISTS seq BIGSERIAL")
}

func TestPostgresStore_Put(t *testing.T) {
	store, mock := newPostgresMock(t)
	cp := checkpoint.New("t1", []byte(`{"messages":[]}`)).WithParent("p-1")

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO agent_checkpoints")).
		WithArgs(cp.ID, "t1", cp.CheckpointID, "p-1", `{"messages":[]}`, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, store.Put(context.Background(), cp))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PutDuplicate(t *testing.T) {
	store, mock := newPostgresMock(t)
	cp := checkpoint.New("t1", []byte(`{}`))

	mock.ExpectExec("INSERT INTO agent_checkpoints").
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := store.Put(context.Background(), cp)
	assert.ErrorIs(t, err, checkpoint.ErrDuplicateCheckpoint)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PutOtherError(t *testing.T) {
	store, mock := newPostgresMock(t)

	mock.ExpectExec("INSERT INTO agent_checkpoints").WillReturnError(errors.New("connection reset"))

	err := store.Put(context.Background(), checkpoint.New("t1", []byte(`{}`)))
	require.Error(t, err)
	assert.NotErrorIs(t, err, checkpoint.ErrDuplicateCheckpoint)
}

func TestPostgresStore_ListParameterized(t *testing.T) {
	store, mock := newPostgresMock(t)
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	rows := sqlmock.NewRows(checkpointColumns).
		AddRow("id-2", "t1", "cp-2", "cp-1", `{"n":2}`, ts.Add(time.Second)).
		AddRow("id-1", "t1", "cp-1", nil, `{"n":1}`, ts)

	mock.ExpectQuery(`SELECT (.+) FROM agent_checkpoints\s+WHERE thread_id = \$1\s+ORDER BY created_at DESC, seq DESC\s+LIMIT \$2`).
		WithArgs("t1", int64(checkpoint.DefaultListLimit)).
		WillReturnRows(rows)

	list, err := store.List(context.Background(), "t1", 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "cp-2", list[0].CheckpointID)
	assert.Equal(t, "cp-1", list[0].ParentCheckpointID)
	assert.Empty(t, list[1].ParentCheckpointID)
	assert.JSONEq(t, `{"n":1}`, string(list[1].Data))
	assert.True(t, ts.Equal(list[1].CreatedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LatestNotFound(t *testing.T) {
	store, mock := newPostgresMock(t)

	mock.ExpectQuery("SELECT (.+) FROM agent_checkpoints").
		WithArgs("nobody", int64(1)).
		WillReturnRows(sqlmock.NewRows(checkpointColumns))

	_, err := store.Latest(context.Background(), "nobody")
	assert.ErrorIs(t, err, checkpoint.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteThread(t *testing.T) {
	store, mock := newPostgresMock(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM agent_checkpoints WHERE thread_id = $1")).
		WithArgs("t1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, store.DeleteThread(context.Background(), "t1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Closed(t *testing.T) {
	store, _ := newPostgresMock(t)
	require.NoError(t, store.Close())

	assert.ErrorIs(t, store.Put(context.Background(), checkpoint.New("t", []byte("{}"))), checkpoint.ErrStoreClosed)
	_, err := store.List(context.Background(), "t", 1)
	assert.ErrorIs(t, err, checkpoint.ErrStoreClosed)
}

func TestOpenPostgresStore_EmptyDSN(t *testing.T) {
	_, err := checkpoint.OpenPostgresStore(context.Background(), "")
	assert.Error(t, err)
}
