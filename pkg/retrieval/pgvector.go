package retrieval

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/pgvector/pgvector-go"

	"github.com/bytebuddhi/agentgraph/pkg/llm"
)

// DefaultTopK is the number of chunks returned when none is configured.
const DefaultTopK = 5

const searchQuery = `SELECT c.chunk_text, f.file_path, c.start_line, c.end_line,
	1 - (e.embedding <=> $1) AS score
FROM code_embeddings e
JOIN code_chunks c ON c.id = e.code_chunk_id
JOIN files f ON f.id = c.file_id
WHERE e.project_id = $2 AND f.is_deleted = FALSE
ORDER BY e.embedding <=> $1
LIMIT $3`

// pgUndefinedTable is raised before the indexing tables exist.
const pgUndefinedTable = "42P01"

// PGVector retrieves code chunks by cosine distance between the query
// embedding and the indexed chunk embeddings.
type PGVector struct {
	db       *sql.DB
	embedder llm.Embedder
	topK     int
	minScore float64
	logger   *slog.Logger
	ownsDB   bool
}

// PGVectorOption configures a PGVector retriever.
type PGVectorOption func(*PGVector)

// WithTopK sets the maximum number of chunks returned.
func WithTopK(k int) PGVectorOption {
	return func(p *PGVector) {
		if k > 0 {
			p.topK = k
		}
	}
}

// WithMinScore drops chunks with a cosine similarity below score.
func WithMinScore(score float64) PGVectorOption {
	return func(p *PGVector) { p.minScore = score }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) PGVectorOption {
	return func(p *PGVector) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPGVector creates a retriever over an existing database handle.
func NewPGVector(db *sql.DB, embedder llm.Embedder, opts ...PGVectorOption) *PGVector {
	p := &PGVector{
		db:       db,
		embedder: embedder,
		topK:     DefaultTopK,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OpenPGVector connects to dsn with the pgx driver. Close releases the
// connection pool.
func OpenPGVector(ctx context.Context, dsn string, embedder llm.Embedder, opts ...PGVectorOption) (*PGVector, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open vector database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping vector database: %w", err)
	}
	p := NewPGVector(db, embedder, opts...)
	p.ownsDB = true
	return p, nil
}

// Retrieve implements Retriever.
func (p *PGVector) Retrieve(ctx context.Context, projectID, query string) ([]Chunk, error) {
	if projectID == "" || query == "" {
		return nil, nil
	}

	vectors, err := p.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return nil, errors.New("embed query: no vector returned")
	}

	rows, err := p.db.QueryContext(ctx, searchQuery, pgvector.NewVector(vectors[0]), projectID, int64(p.topK))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable {
			p.logger.Info("code index not created yet", "project_id", projectID)
			return nil, nil
		}
		return nil, fmt.Errorf("search code embeddings: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var (
			content, path      string
			startLine, endLine int
			score              float64
		)
		if err := rows.Scan(&content, &path, &startLine, &endLine, &score); err != nil {
			return nil, fmt.Errorf("scan code chunk: %w", err)
		}
		if score < p.minScore {
			continue
		}
		chunks = append(chunks, Chunk{
			Content: content,
			Source:  fmt.Sprintf("%s:%d-%d", path, startLine, endLine),
			Score:   score,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate code chunks: %w", err)
	}

	p.logger.Info("retrieved code context", "project_id", projectID, "chunks", len(chunks))
	return chunks, nil
}

// Close closes the database if the retriever opened it.
func (p *PGVector) Close() error {
	if p.ownsDB {
		return p.db.Close()
	}
	return nil
}

var _ Retriever = (*PGVector)(nil)
