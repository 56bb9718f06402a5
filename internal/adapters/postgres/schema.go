package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"unification-service/internal/core/domain"
)

const canonicalTable = "unified_houses"

// displayNameExpr - SQL-выражение названия ЖК для каждого вида, то же, что SourceRecord.DisplayName
var displayNameExpr = map[domain.SourceKind]string{
	domain.KindDomRF:    `COALESCE(NULLIF(doc->>'objCommercNm', ''), doc->>'complexShortName', '')`,
	domain.KindAvito:    `COALESCE(doc->'development'->>'name', '')`,
	domain.KindDomClick: `COALESCE(doc->'development'->>'complex_name', '')`,
}

func sourceTable(kind domain.SourceKind) (string, error) {
	if !kind.Valid() {
		return "", domain.NewError(domain.ErrorKindSchemaViolation, "source table", fmt.Sprintf("unknown source kind %q", kind))
	}
	return pgx.Identifier{string(kind)}.Sanitize(), nil
}

// EnsureSchema создает схему dbName (если задана), таблицы источников и unified_houses.
// Таблицы создаются без квалификации: пул ставит search_path на dbName.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, dbName string) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if dbName != "" {
		if _, err := tx.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{dbName}.Sanitize()); err != nil {
			return fmt.Errorf("failed to create schema %s: %w", dbName, err)
		}
	}

	for _, kind := range domain.AllSourceKinds {
		table, _ := sourceTable(kind)
		statements := []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				seq                BIGSERIAL,
				id                 TEXT PRIMARY KEY,
				doc                JSONB NOT NULL,
				normalized_name    TEXT NOT NULL DEFAULT '',
				is_matched         BOOLEAN NOT NULL DEFAULT FALSE,
				matched_unified_id TEXT,
				matched_at         TIMESTAMPTZ,
				is_processed       BOOLEAN NOT NULL DEFAULT FALSE,
				processed_at       TIMESTAMPTZ,
				future_project_id  TEXT
			)`, table),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (normalized_name) WHERE NOT is_matched AND NOT is_processed`,
				pgx.Identifier{string(kind) + "_available_name_idx"}.Sanitize(), table),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s (seq)`,
				pgx.Identifier{string(kind) + "_seq_idx"}.Sanitize(), table),
		}
		for _, stmt := range statements {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("failed to create %s schema: %w", kind, err)
			}
		}
	}

	statements := []string{
		`CREATE TABLE IF NOT EXISTS unified_houses (
			seq        BIGSERIAL,
			id         TEXT PRIMARY KEY,
			doc        JSONB NOT NULL,
			geohash    TEXT,
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS unified_houses_geohash_idx ON unified_houses (geohash text_pattern_ops)`,
		`CREATE INDEX IF NOT EXISTS unified_houses_seq_idx ON unified_houses (seq)`,
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create %s schema: %w", canonicalTable, err)
		}
	}

	return tx.Commit(ctx)
}
