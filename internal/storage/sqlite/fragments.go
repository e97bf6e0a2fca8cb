package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/sandevgo/momentum/internal/core"
)

// FragmentRepo persists memory fragments with their embeddings and serves
// nearest-neighbor queries over a user's partition. Partitions are small
// (single tenant per query), so candidates are filtered in SQL and scored
// in Go rather than through a vector extension.
type FragmentRepo struct {
	db *sql.DB
}

func NewFragmentRepo(db *sql.DB) *FragmentRepo {
	return &FragmentRepo{db: db}
}

const fragmentColumns = `id, user_id, type, text, timestamp, priority, course_id,
	is_chunk, source_doc_id, chunk_index, total_chunks, embedding`

func (r *FragmentRepo) Upsert(ctx context.Context, fragments []core.MemoryFragment) error {
	if len(fragments) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO fragments
			(id, user_id, type, text, timestamp, priority, course_id,
			 is_chunk, source_doc_id, chunk_index, total_chunks, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, f := range fragments {
		blob, err := serializeVector(f.Embedding)
		if err != nil {
			return err
		}
		m := f.Meta
		_, err = stmt.ExecContext(ctx,
			f.ID, m.UserID, m.Type, f.Text, m.Timestamp, m.Priority, m.CourseID,
			m.IsChunk, m.SourceDocID, m.ChunkIndex, m.TotalChunks, blob,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert fragment %s: %w", f.ID, err)
		}
	}

	return tx.Commit()
}

func (r *FragmentRepo) Get(ctx context.Context, ids []string) ([]core.MemoryFragment, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := fmt.Sprintf(`SELECT %s FROM fragments WHERE id IN (%s)`, fragmentColumns, placeholders)

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fragment get failed: %w", err)
	}
	defer rows.Close()

	return scanFragments(rows)
}

func (r *FragmentRepo) Query(ctx context.Context, vector []float32, n int, filter core.QueryFilter) ([]core.QueryMatch, error) {
	candidates, err := r.Find(ctx, filter)
	if err != nil {
		return nil, err
	}

	matches := make([]core.QueryMatch, 0, len(candidates))
	for _, f := range candidates {
		matches = append(matches, core.QueryMatch{
			Fragment: f,
			Distance: core.CosineDistance(vector, f.Embedding),
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Distance < matches[j].Distance
	})

	if n > 0 && len(matches) > n {
		matches = matches[:n]
	}
	return matches, nil
}

func (r *FragmentRepo) Find(ctx context.Context, filter core.QueryFilter) ([]core.MemoryFragment, error) {
	where := []string{"user_id = ?"}
	args := []interface{}{filter.UserID}

	if len(filter.Types) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(filter.Types)), ",")
		where = append(where, fmt.Sprintf("type IN (%s)", placeholders))
		for _, t := range filter.Types {
			args = append(args, t)
		}
	}
	if filter.CourseID != "" {
		where = append(where, "course_id = ?")
		args = append(args, filter.CourseID)
	}

	query := fmt.Sprintf(`SELECT %s FROM fragments WHERE %s`,
		fragmentColumns, strings.Join(where, " AND "))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fragment find failed: %w", err)
	}
	defer rows.Close()

	return scanFragments(rows)
}

func (r *FragmentRepo) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	_, err := r.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM fragments WHERE id IN (%s)", placeholders), args...)
	return err
}

func scanFragments(rows *sql.Rows) ([]core.MemoryFragment, error) {
	var fragments []core.MemoryFragment
	for rows.Next() {
		var f core.MemoryFragment
		var blob []byte
		err := rows.Scan(
			&f.ID, &f.Meta.UserID, &f.Meta.Type, &f.Text, &f.Meta.Timestamp,
			&f.Meta.Priority, &f.Meta.CourseID, &f.Meta.IsChunk,
			&f.Meta.SourceDocID, &f.Meta.ChunkIndex, &f.Meta.TotalChunks, &blob,
		)
		if err != nil {
			return nil, err
		}
		if f.Embedding, err = deserializeVector(blob); err != nil {
			return nil, fmt.Errorf("fragment %s: %w", f.ID, err)
		}
		fragments = append(fragments, f)
	}
	return fragments, rows.Err()
}
