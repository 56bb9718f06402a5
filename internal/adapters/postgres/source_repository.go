package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"unification-service/internal/core/domain"
	"unification-service/internal/core/port"
)

const (
	sourceColumns = `id, doc, normalized_name, is_matched, matched_unified_id, matched_at,
		is_processed, processed_at, future_project_id`
	availableFilter = `NOT is_matched AND NOT is_processed`
)

// SourceRepository - три таблицы источников: domrf, avito, domclick
type SourceRepository struct {
	pool *pgxpool.Pool
}

var (
	_ port.SourceStorePort         = (*SourceRepository)(nil)
	_ port.NormalizedNameStorePort = (*SourceRepository)(nil)
)

func NewSourceRepository(pool *pgxpool.Pool) (*SourceRepository, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgxpool.Pool cannot be nil")
	}
	return &SourceRepository{pool: pool}, nil
}

func (r *SourceRepository) Get(ctx context.Context, kind domain.SourceKind, id string) (*domain.SourceRecord, error) {
	table, err := sourceTable(kind)
	if err != nil {
		return nil, err
	}

	row := r.pool.QueryRow(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, sourceColumns, table), id)
	rec, err := scanSource(kind, row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewError(domain.ErrorKindSourceNotFound, "get source", fmt.Sprintf("%s record %s not found", kind, id)).
			WithField("kind", string(kind)).WithField("id", id)
	}
	if err != nil {
		return nil, fmt.Errorf("SourceRepository: failed to get %s %s: %w", kind, id, err)
	}
	return rec, nil
}

func (r *SourceRepository) ListAvailable(ctx context.Context, kind domain.SourceKind, q domain.SourceQuery) ([]*domain.SourceRecord, error) {
	table, err := sourceTable(kind)
	if err != nil {
		return nil, err
	}

	var (
		where = []string{availableFilter}
		args  []interface{}
	)
	if search := strings.TrimSpace(q.Search); search != "" {
		args = append(args, strings.ToLower(search))
		where = append(where, fmt.Sprintf("strpos(lower(%s), $%d) > 0", displayNameExpr[kind], len(args)))
	}
	if q.ExcludeFuture {
		where = append(where, "future_project_id IS NULL")
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s ORDER BY seq`, sourceColumns, table, strings.Join(where, " AND "))
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return r.query(ctx, kind, query, args...)
}

func (r *SourceRepository) FindByNormalizedName(ctx context.Context, kind domain.SourceKind, normalized string) ([]*domain.SourceRecord, error) {
	if normalized == "" {
		return nil, nil
	}
	table, err := sourceTable(kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s AND normalized_name = $1 ORDER BY seq`, sourceColumns, table, availableFilter)
	return r.query(ctx, kind, query, normalized)
}

func (r *SourceRepository) FindByNormalizedPattern(ctx context.Context, kind domain.SourceKind, pattern string) ([]*domain.SourceRecord, error) {
	if pattern == "" {
		return nil, nil
	}
	table, err := sourceTable(kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s AND normalized_name <> '' AND normalized_name ~* $1 ORDER BY seq`,
		sourceColumns, table, availableFilter)
	return r.query(ctx, kind, query, pattern)
}

func (r *SourceRepository) FindByDisplayPattern(ctx context.Context, kind domain.SourceKind, pattern string) ([]*domain.SourceRecord, error) {
	if pattern == "" {
		return nil, nil
	}
	table, err := sourceTable(kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s AND %s ~* $1 ORDER BY seq`,
		sourceColumns, table, availableFilter, displayNameExpr[kind])
	return r.query(ctx, kind, query, pattern)
}

// UpdateLifecycle читает флаги под FOR UPDATE, применяет mutate и пишет их обратно в той же транзакции
func (r *SourceRepository) UpdateLifecycle(ctx context.Context, kind domain.SourceKind, id string, mutate func(*domain.SourceLifecycle)) error {
	table, err := sourceTable(kind)
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var l domain.SourceLifecycle
	err = tx.QueryRow(ctx, fmt.Sprintf(`SELECT is_matched, matched_unified_id, matched_at, is_processed, processed_at, future_project_id
		FROM %s WHERE id = $1 FOR UPDATE`, table), id).
		Scan(&l.IsMatched, &l.MatchedUnifiedID, &l.MatchedAt, &l.IsProcessed, &l.ProcessedAt, &l.FutureProjectID)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NewError(domain.ErrorKindSourceNotFound, "update lifecycle", fmt.Sprintf("%s record %s not found", kind, id))
	}
	if err != nil {
		return fmt.Errorf("SourceRepository: failed to lock %s %s: %w", kind, id, err)
	}

	mutate(&l)

	_, err = tx.Exec(ctx, fmt.Sprintf(`UPDATE %s SET is_matched = $2, matched_unified_id = $3, matched_at = $4,
		is_processed = $5, processed_at = $6, future_project_id = $7 WHERE id = $1`, table),
		id, l.IsMatched, l.MatchedUnifiedID, l.MatchedAt, l.IsProcessed, l.ProcessedAt, l.FutureProjectID)
	if err != nil {
		return fmt.Errorf("SourceRepository: failed to update lifecycle of %s %s: %w", kind, id, err)
	}
	return tx.Commit(ctx)
}

// Upsert загружает запись источника вместе с флагами (импорт дампов, фикстуры интеграционных тестов)
func (r *SourceRepository) Upsert(ctx context.Context, rec *domain.SourceRecord) error {
	table, err := sourceTable(rec.Kind)
	if err != nil {
		return err
	}
	doc, err := rec.EncodePayload()
	if err != nil {
		return err
	}
	l := rec.Lifecycle
	_, err = r.pool.Exec(ctx, fmt.Sprintf(`INSERT INTO %s (id, doc, normalized_name, is_matched, matched_unified_id, matched_at,
			is_processed, processed_at, future_project_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			doc = EXCLUDED.doc,
			normalized_name = EXCLUDED.normalized_name,
			is_matched = EXCLUDED.is_matched,
			matched_unified_id = EXCLUDED.matched_unified_id,
			matched_at = EXCLUDED.matched_at,
			is_processed = EXCLUDED.is_processed,
			processed_at = EXCLUDED.processed_at,
			future_project_id = EXCLUDED.future_project_id`, table),
		rec.ID, doc, rec.NormalizedName, l.IsMatched, l.MatchedUnifiedID, l.MatchedAt, l.IsProcessed, l.ProcessedAt, l.FutureProjectID)
	if err != nil {
		return fmt.Errorf("SourceRepository: failed to upsert %s %s: %w", rec.Kind, rec.ID, err)
	}
	return nil
}

func (r *SourceRepository) ScanNames(ctx context.Context, kind domain.SourceKind, fn func(id, displayName, normalized string) error) error {
	table, err := sourceTable(kind)
	if err != nil {
		return err
	}

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`SELECT id, %s, normalized_name FROM %s ORDER BY seq`, displayNameExpr[kind], table))
	if err != nil {
		return fmt.Errorf("SourceRepository: failed to scan %s names: %w", kind, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, display, normalized string
		if err := rows.Scan(&id, &display, &normalized); err != nil {
			return fmt.Errorf("SourceRepository: failed to scan %s name row: %w", kind, err)
		}
		if err := fn(id, display, normalized); err != nil {
			return err
		}
	}
	return rows.Err()
}

// SetNormalizedNames пишет пачку через COPY во временную таблицу и один UPDATE ... FROM
func (r *SourceRepository) SetNormalizedNames(ctx context.Context, kind domain.SourceKind, names map[string]string) (int, error) {
	if len(names) == 0 {
		return 0, nil
	}
	table, err := sourceTable(kind)
	if err != nil {
		return 0, err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `CREATE TEMP TABLE temp_normalized_names (id TEXT, normalized_name TEXT) ON COMMIT DROP`); err != nil {
		return 0, fmt.Errorf("failed to create temp table: %w", err)
	}

	rows := make([][]interface{}, 0, len(names))
	for id, normalized := range names {
		rows = append(rows, []interface{}{id, normalized})
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"temp_normalized_names"}, []string{"id", "normalized_name"}, pgx.CopyFromRows(rows)); err != nil {
		return 0, fmt.Errorf("failed to copy normalized names: %w", err)
	}

	tag, err := tx.Exec(ctx, fmt.Sprintf(`UPDATE %s AS s SET normalized_name = t.normalized_name
		FROM temp_normalized_names AS t
		WHERE s.id = t.id AND s.normalized_name IS DISTINCT FROM t.normalized_name`, table))
	if err != nil {
		return 0, fmt.Errorf("failed to update normalized names: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *SourceRepository) query(ctx context.Context, kind domain.SourceKind, query string, args ...interface{}) ([]*domain.SourceRecord, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("SourceRepository: failed to query %s: %w", kind, err)
	}
	defer rows.Close()

	var out []*domain.SourceRecord
	for rows.Next() {
		rec, err := scanSource(kind, rows)
		if err != nil {
			return nil, fmt.Errorf("SourceRepository: failed to scan %s row: %w", kind, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("SourceRepository: error during %s rows iteration: %w", kind, err)
	}
	return out, nil
}

func scanSource(kind domain.SourceKind, row pgx.Row) (*domain.SourceRecord, error) {
	var (
		id, normalized string
		doc            []byte
		l              domain.SourceLifecycle
	)
	if err := row.Scan(&id, &doc, &normalized, &l.IsMatched, &l.MatchedUnifiedID, &l.MatchedAt,
		&l.IsProcessed, &l.ProcessedAt, &l.FutureProjectID); err != nil {
		return nil, err
	}
	return domain.DecodeSourceRecord(kind, id, doc, l, normalized)
}
