// Package postgres implements the candidate Source against PostgreSQL with
// the pgvector extension: weighted full-text ranking for the lexical signal
// and cosine distance over stored embeddings for the semantic signal.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pgvector/pgvector-go"

	"github.com/lexibase/passrank/internal/domain"
	"github.com/lexibase/passrank/internal/domain/search/filter"
)

// Source reads passages through the two retrieval primitives. It owns no
// write path beyond schema bootstrap; ingestion is an external concern.
type Source struct {
	db *sql.DB
}

// New creates a Postgres candidate source over an open handle.
func New(db *sql.DB) *Source {
	return &Source{db: db}
}

// Open connects to PostgreSQL via the pgx stdlib driver.
func Open(dsn string) (*sql.DB, error) {
	handle, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	handle.SetMaxOpenConns(10)
	handle.SetMaxIdleConns(10)
	handle.SetConnMaxLifetime(30 * time.Minute)

	if err := handle.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return handle, nil
}

// EnsureSchema bootstraps the documents and passages tables. The tsv column
// is a stored weighted tsvector with the heading above the body, so lexical
// ranking stays consistent across deployments; the embedding column is fixed
// to the system-wide dimension.
func (s *Source) EnsureSchema(ctx context.Context, dim int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	ddl := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	filename TEXT,
	title TEXT NOT NULL DEFAULT '',
	year INT NOT NULL DEFAULT 0,
	category TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS passages (
	id TEXT PRIMARY KEY,
	doc_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	heading TEXT NOT NULL DEFAULT '',
	text TEXT NOT NULL,
	parent_text TEXT NOT NULL DEFAULT '',
	year INT NOT NULL DEFAULT 0,
	category TEXT NOT NULL DEFAULT '',
	embedding vector(%d),
	tsv tsvector GENERATED ALWAYS AS (
		setweight(to_tsvector('english', coalesce(heading, '')), 'A') ||
		setweight(to_tsvector('english', text), 'B')
	) STORED
);

CREATE INDEX IF NOT EXISTS idx_passages_tsv ON passages USING gin (tsv);
CREATE INDEX IF NOT EXISTS idx_passages_embedding ON passages USING hnsw (embedding vector_cosine_ops);
CREATE INDEX IF NOT EXISTS idx_passages_year ON passages (year);
CREATE INDEX IF NOT EXISTS idx_passages_category ON passages (category);
`, dim)

	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

const candidateColumns = `p.id, p.doc_id, d.title, p.heading, p.text, p.parent_text, p.year, p.category, p.embedding`

// LexicalSearch ranks passages matching the query terms by weighted full-text
// rank, filter applied in-store, pre-sorted descending.
func (s *Source) LexicalSearch(
	ctx context.Context, query string, f filter.Filter, limit int,
) ([]domain.Candidate, error) {
	where, args := filterClauses(f, 2)
	args = append([]any{query}, args...)
	args = append(args, limit)

	q := fmt.Sprintf(`
SELECT %s,
       ts_rank_cd(p.tsv, plainto_tsquery('english', $1)) AS lex
  FROM passages p
  JOIN documents d ON d.id = p.doc_id
 WHERE p.tsv @@ plainto_tsquery('english', $1)%s
 ORDER BY lex DESC, p.id
 LIMIT $%d`, candidateColumns, where, len(args))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("lexical query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.Candidate
	for rows.Next() {
		c, score, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lexical candidate: %w", err)
		}
		c.Lexical = score
		c.HasLexical = true
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lexical rows: %w", err)
	}
	return out, nil
}

// SemanticSearch ranks passages by cosine distance to the query embedding,
// filter applied in-store, pre-sorted ascending (nearest first).
func (s *Source) SemanticSearch(
	ctx context.Context, embedding []float32, f filter.Filter, limit int,
) ([]domain.Candidate, error) {
	where, args := filterClauses(f, 2)
	args = append([]any{pgvector.NewVector(embedding)}, args...)
	args = append(args, limit)

	cond := strings.TrimPrefix(where, " AND")
	if cond == "" {
		cond = " TRUE"
	}

	q := fmt.Sprintf(`
SELECT %s,
       p.embedding <=> $1 AS distance
  FROM passages p
  JOIN documents d ON d.id = p.doc_id
 WHERE p.embedding IS NOT NULL AND%s
 ORDER BY distance, p.id
 LIMIT $%d`, candidateColumns, cond, len(args))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("semantic query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []domain.Candidate
	for rows.Next() {
		c, score, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan semantic candidate: %w", err)
		}
		c.Distance = score
		c.HasSemantic = true
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("semantic rows: %w", err)
	}
	return out, nil
}

// Ping reports store connectivity.
func (s *Source) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	return nil
}

// filterClauses renders the exact-match filter as AND clauses with positional
// parameters starting at argPos.
func filterClauses(f filter.Filter, argPos int) (string, []any) {
	var sb strings.Builder
	var args []any

	if y := f.Year(); y != nil {
		sb.WriteString(" AND p.year = $" + strconv.Itoa(argPos))
		args = append(args, *y)
		argPos++
	}
	if c := f.Category(); c != "" {
		sb.WriteString(" AND p.category = $" + strconv.Itoa(argPos))
		args = append(args, c)
	}
	return sb.String(), args
}

func scanCandidate(rows *sql.Rows) (domain.Candidate, float64, error) {
	var (
		c      domain.Candidate
		embRaw sql.NullString
		score  float64
	)
	err := rows.Scan(
		&c.ID, &c.DocID, &c.Title, &c.Heading, &c.Text, &c.ParentText,
		&c.Year, &c.Category, &embRaw, &score,
	)
	if err != nil {
		return domain.Candidate{}, 0, err
	}
	if embRaw.Valid {
		var vec pgvector.Vector
		if err := vec.Scan(embRaw.String); err != nil {
			return domain.Candidate{}, 0, fmt.Errorf("parse embedding: %w", err)
		}
		c.Embedding = vec.Slice()
	}
	return c, score, nil
}
