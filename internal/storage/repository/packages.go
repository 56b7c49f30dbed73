package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/magabrotheeeer/entitlement-engine/internal/models"
)

// CreatePackage вставляет новый тарифный пакет и возвращает его ID.
func (s *Storage) CreatePackage(ctx context.Context, pkg models.Package) (string, error) {
	const op = "storage.CreatePackage"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var limit sql.NullInt64
	if pkg.PackageLimit != nil {
		limit = sql.NullInt64{Int64: int64(*pkg.PackageLimit), Valid: true}
	}

	query := `INSERT INTO packages (name, duration, package_limit, trial_posts,
			      storage, max_group, price)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  RETURNING package_id`
	var newID string
	err := s.DB.QueryRowContext(ctx, query,
		pkg.Name, pkg.Duration, limit, pkg.TrialPosts, pkg.Storage, pkg.MaxGroup,
		pkg.Price).Scan(&newID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// GetPackage возвращает пакет по его ID.
// Второе возвращаемое значение false означает, что пакет не найден.
func (s *Storage) GetPackage(ctx context.Context, packageID string) (*models.Package, bool, error) {
	const op = "storage.GetPackage"
	select {
	case <-ctx.Done():
		return nil, false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT package_id, name, duration, package_limit, trial_posts,
			      storage, max_group, price, created_at
			  FROM packages WHERE package_id = $1`
	row := s.DB.QueryRowContext(ctx, query, packageID)

	pkg := &models.Package{}
	var limit sql.NullInt64
	if err := row.Scan(&pkg.PackageID, &pkg.Name, &pkg.Duration, &limit, &pkg.TrialPosts,
		&pkg.Storage, &pkg.MaxGroup, &pkg.Price, &pkg.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}
	if limit.Valid {
		v := int(limit.Int64)
		pkg.PackageLimit = &v
	}
	return pkg, true, nil
}

// ListPackages возвращает список пакетов с пагинацией.
func (s *Storage) ListPackages(ctx context.Context, limit, offset int) ([]*models.Package, error) {
	const op = "storage.ListPackages"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT package_id, name, duration, package_limit, trial_posts,
			      storage, max_group, price, created_at
			  FROM packages
			  ORDER BY created_at
			  LIMIT $1 OFFSET $2`
	rows, err := s.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Package
	for rows.Next() {
		pkg := &models.Package{}
		var pkgLimit sql.NullInt64
		if err := rows.Scan(&pkg.PackageID, &pkg.Name, &pkg.Duration, &pkgLimit,
			&pkg.TrialPosts, &pkg.Storage, &pkg.MaxGroup, &pkg.Price, &pkg.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if pkgLimit.Valid {
			v := int(pkgLimit.Int64)
			pkg.PackageLimit = &v
		}
		result = append(result, pkg)
	}
	return result, nil
}
