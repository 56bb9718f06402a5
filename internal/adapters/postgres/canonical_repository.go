package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"unification-service/internal/core/domain"
	"unification-service/internal/core/port"
)

// CanonicalRepository - unified_houses; запись целиком лежит в doc, geohash дублируется колонкой для поиска рядом
type CanonicalRepository struct {
	pool *pgxpool.Pool
}

var _ port.CanonicalStorePort = (*CanonicalRepository)(nil)

func NewCanonicalRepository(pool *pgxpool.Pool) (*CanonicalRepository, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgxpool.Pool cannot be nil")
	}
	return &CanonicalRepository{pool: pool}, nil
}

func (r *CanonicalRepository) Insert(ctx context.Context, rec *domain.CanonicalRecord) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("CanonicalRepository: failed to encode %s: %w", rec.ID, err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO unified_houses (id, doc, geohash, created_at) VALUES ($1, $2, $3, $4)`,
		rec.ID, doc, geohashOf(rec), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("CanonicalRepository: failed to insert %s: %w", rec.ID, err)
	}
	return nil
}

func (r *CanonicalRepository) Get(ctx context.Context, id string) (*domain.CanonicalRecord, error) {
	return getCanonical(r.pool.QueryRow(ctx, `SELECT doc FROM unified_houses WHERE id = $1`, id), id)
}

func (r *CanonicalRepository) Replace(ctx context.Context, rec *domain.CanonicalRecord) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("CanonicalRepository: failed to encode %s: %w", rec.ID, err)
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE unified_houses SET doc = $2, geohash = $3 WHERE id = $1`,
		rec.ID, doc, geohashOf(rec))
	if err != nil {
		return fmt.Errorf("CanonicalRepository: failed to replace %s: %w", rec.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return canonicalNotFound(rec.ID)
	}
	return nil
}

// UpdateFields применяет пути к документу под блокировкой строки
func (r *CanonicalRepository) UpdateFields(ctx context.Context, id string, set map[string]any) (*domain.CanonicalRecord, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	current, err := getCanonical(tx.QueryRow(ctx, `SELECT doc FROM unified_houses WHERE id = $1 FOR UPDATE`, id), id)
	if err != nil {
		return nil, err
	}
	updated, err := domain.ApplyPaths(current, set)
	if err != nil {
		return nil, err
	}
	doc, err := json.Marshal(updated)
	if err != nil {
		return nil, fmt.Errorf("CanonicalRepository: failed to encode %s: %w", id, err)
	}
	if _, err := tx.Exec(ctx, `UPDATE unified_houses SET doc = $2, geohash = $3 WHERE id = $1`, id, doc, geohashOf(updated)); err != nil {
		return nil, fmt.Errorf("CanonicalRepository: failed to update %s: %w", id, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return updated, nil
}

// ForEach сначала снимает список id, затем читает записи по одной: fn может писать в ту же таблицу
func (r *CanonicalRepository) ForEach(ctx context.Context, fn func(*domain.CanonicalRecord) error) error {
	rows, err := r.pool.Query(ctx, `SELECT id FROM unified_houses ORDER BY seq`)
	if err != nil {
		return fmt.Errorf("CanonicalRepository: failed to list ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return fmt.Errorf("CanonicalRepository: failed to collect ids: %w", err)
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := r.Get(ctx, id)
		if domain.KindOf(err) == domain.ErrorKindCanonicalNotFound {
			// удалена между снимком и чтением
			continue
		}
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

func (r *CanonicalRepository) FindNear(ctx context.Context, lat, lon float64, limit int) ([]*domain.CanonicalRecord, error) {
	center := domain.Coordinates{Lat: lat, Lon: lon}
	cells := domain.NearbyCells(center)
	patterns := make([]string, len(cells))
	for i, cell := range cells {
		patterns[i] = cell + "%"
	}

	rows, err := r.pool.Query(ctx, `SELECT doc FROM unified_houses WHERE geohash LIKE ANY($1) ORDER BY seq`, patterns)
	if err != nil {
		return nil, fmt.Errorf("CanonicalRepository: failed to query near: %w", err)
	}
	defer rows.Close()

	var found []*domain.CanonicalRecord
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("CanonicalRepository: failed to scan row: %w", err)
		}
		rec, err := decodeCanonical(doc)
		if err != nil {
			return nil, err
		}
		if rec.Coordinates != nil {
			found = append(found, rec)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("CanonicalRepository: error during rows iteration: %w", err)
	}

	sort.SliceStable(found, func(i, j int) bool {
		return domain.DistanceMeters(center, *found[i].Coordinates) < domain.DistanceMeters(center, *found[j].Coordinates)
	})
	if limit > 0 && len(found) > limit {
		found = found[:limit]
	}
	return found, nil
}

func (r *CanonicalRepository) ReferencedSourceIDs(ctx context.Context, kind domain.SourceKind) (map[string]string, error) {
	if !kind.Valid() {
		return nil, domain.NewError(domain.ErrorKindSchemaViolation, "referenced source ids", fmt.Sprintf("unknown source kind %q", kind))
	}
	rows, err := r.pool.Query(ctx,
		`SELECT doc->'_source_ids'->>$1, id FROM unified_houses
		 WHERE COALESCE(doc->'_source_ids'->>$1, '') <> ''`, string(kind))
	if err != nil {
		return nil, fmt.Errorf("CanonicalRepository: failed to query references: %w", err)
	}
	defer rows.Close()

	refs := make(map[string]string)
	for rows.Next() {
		var sourceID, canonicalID string
		if err := rows.Scan(&sourceID, &canonicalID); err != nil {
			return nil, fmt.Errorf("CanonicalRepository: failed to scan reference: %w", err)
		}
		refs[sourceID] = canonicalID
	}
	return refs, rows.Err()
}

func getCanonical(row pgx.Row, id string) (*domain.CanonicalRecord, error) {
	var doc []byte
	err := row.Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, canonicalNotFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("CanonicalRepository: failed to get %s: %w", id, err)
	}
	return decodeCanonical(doc)
}

func decodeCanonical(doc []byte) (*domain.CanonicalRecord, error) {
	var rec domain.CanonicalRecord
	if err := json.Unmarshal(doc, &rec); err != nil {
		return nil, fmt.Errorf("CanonicalRepository: failed to decode document: %w", err)
	}
	return &rec, nil
}

func geohashOf(rec *domain.CanonicalRecord) *string {
	if rec.Coordinates == nil {
		return nil
	}
	h := domain.Geohash(*rec.Coordinates)
	return &h
}

func canonicalNotFound(id string) error {
	return domain.NewError(domain.ErrorKindCanonicalNotFound, "get canonical", fmt.Sprintf("unified record %s not found", id)).
		WithField("id", id)
}
