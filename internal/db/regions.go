package db

import (
	"context"
	"fmt"

	"github.com/evoting/core/internal/models"
)

// AllRegions returns the full region catalog, used by the RegionCatalog
// read accessor (spec.md's supplemented feature; region CRUD/import is a
// Non-goal — only the read path is implemented).
func (s *PostgresStore) AllRegions(ctx context.Context) ([]models.Region, error) {
	rows, err := s.pool.Query(ctx, `SELECT code, name_en, name_ka, parent_code FROM regions ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("db: list regions: %w", err)
	}
	defer rows.Close()

	var out []models.Region
	for rows.Next() {
		var r models.Region
		if err := rows.Scan(&r.Code, &r.NameEN, &r.NameKA, &r.ParentCode); err != nil {
			return nil, fmt.Errorf("db: scan region: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SeedRegions inserts the bundled region catalog if the table is empty,
// run once at startup (spec.md's supplemented "Region table" feature).
func (s *PostgresStore) SeedRegions(ctx context.Context, regions []models.Region) error {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM regions`).Scan(&count); err != nil {
		return fmt.Errorf("db: count regions: %w", err)
	}
	if count > 0 {
		return nil
	}
	for _, r := range regions {
		if _, err := s.pool.Exec(ctx,
			`INSERT INTO regions (code, name_en, name_ka, parent_code) VALUES ($1,$2,$3,$4) ON CONFLICT DO NOTHING`,
			r.Code, r.NameEN, r.NameKA, r.ParentCode); err != nil {
			return fmt.Errorf("db: seed region %s: %w", r.Code, err)
		}
	}
	return nil
}
