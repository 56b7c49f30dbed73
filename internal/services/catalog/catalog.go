// Package catalog содержит бизнес-логику каталога тарифных пакетов.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/entitlement-engine/internal/models"
)

// Срок жизни кеша списка пакетов. Каталог меняется редко.
const packagesCacheTTL = 10 * time.Minute

const packagesCacheKey = "packages:list"

// PackageRepository определяет методы работы с каталогом пакетов.
type PackageRepository interface {
	CreatePackage(ctx context.Context, pkg models.Package) (string, error)
	ListPackages(ctx context.Context, limit, offset int) ([]*models.Package, error)
}

// Cache описывает методы кеширования списка пакетов.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, ttl time.Duration) error
	Invalidate(key string) error
}

// Service реализует операции каталога пакетов.
type Service struct {
	packages PackageRepository
	cache    Cache
	log      *slog.Logger
}

// New создает новый экземпляр Service.
func New(packages PackageRepository, cache Cache, log *slog.Logger) *Service {
	return &Service{
		packages: packages,
		cache:    cache,
		log:      log,
	}
}

// CreatePackage добавляет пакет в каталог и сбрасывает кеш списка.
func (s *Service) CreatePackage(ctx context.Context, req models.DummyPackage) (string, error) {
	const op = "services.catalog.CreatePackage"

	pkg := models.Package{
		Name:         req.Name,
		Duration:     req.Duration,
		PackageLimit: req.PackageLimit,
		TrialPosts:   req.TrialPosts,
		Storage:      req.Storage,
		MaxGroup:     req.MaxGroup,
		Price:        req.Price,
	}
	packageID, err := s.packages.CreatePackage(ctx, pkg)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if err := s.cache.Invalidate(packagesCacheKey); err != nil {
		s.log.Warn("failed to invalidate packages cache", slog.Any("err", err))
	}

	s.log.Info("package created", slog.String("package_id", packageID), slog.String("name", req.Name))
	return packageID, nil
}

// ListPackages возвращает страницу каталога. Первая страница кешируется:
// её запрашивает каждый клиент при выборе тарифа.
func (s *Service) ListPackages(ctx context.Context, limit, offset int) ([]*models.Package, error) {
	const op = "services.catalog.ListPackages"

	firstPage := offset == 0
	if firstPage {
		var cached []*models.Package
		found, err := s.cache.Get(packagesCacheKey, &cached)
		if err != nil {
			s.log.Warn("failed to read packages cache", slog.Any("err", err))
		}
		if found && len(cached) >= limit {
			return cached[:limit], nil
		}
	}

	packages, err := s.packages.ListPackages(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if firstPage {
		if err := s.cache.Set(packagesCacheKey, packages, packagesCacheTTL); err != nil {
			s.log.Warn("failed to cache packages list", slog.Any("err", err))
		}
	}
	return packages, nil
}
