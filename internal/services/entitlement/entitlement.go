// Package entitlement содержит бизнес-логику проверки прав и списания квот.
//
// Оценщик классифицирует аккаунт по состоянию подписки и определяет режим
// потребления (пробный или платный); журнал квот выполняет атомарное
// списание "проверил и уменьшил" так, что счетчики никогда не уходят
// ниже нуля даже при конкурентных запросах на один аккаунт.
package entitlement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/entitlement-engine/internal/metrics"
	"github.com/magabrotheeeer/entitlement-engine/internal/models"
)

// AccountRepository определяет методы для работы с аккаунтами в хранилище.
// Методы списания выполняют проверку и изменение счетчика одним атомарным
// оператором и возвращают количество изменённых строк: 0 означает,
// что проверка не прошла и счетчик не изменился.
type AccountRepository interface {
	// GetAccount возвращает аккаунт по uid; false — аккаунт не найден.
	GetAccount(ctx context.Context, userUID string) (*models.Account, bool, error)
	// DecrementPosts списывает один пост у платного аккаунта.
	DecrementPosts(ctx context.Context, userUID string) (int, error)
	// DecrementPrompts списывает один промпт у платного аккаунта.
	DecrementPrompts(ctx context.Context, userUID string) (int, error)
	// DecrementGroups списывает одно создание группы.
	DecrementGroups(ctx context.Context, userUID string) (int, error)
	// IncrementTrialPosts увеличивает пробный счетчик, пока он меньше лимита.
	IncrementTrialPosts(ctx context.Context, userUID string, limit int) (int, error)
}

// PackageRepository определяет методы для чтения тарифных пакетов.
type PackageRepository interface {
	// GetPackage возвращает пакет по ID; false — пакет не найден.
	GetPackage(ctx context.Context, packageID string) (*models.Package, bool, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	// Get пытается получить значение из кеша по ключу.
	Get(key string, result any) (bool, error)
	// Set сохраняет значение в кеш с временем жизни.
	Set(key string, value any, expiration time.Duration) error
	// Invalidate удаляет значение из кеша по ключу.
	Invalidate(key string) error
	// SetOnce сохраняет значение, только если ключа еще нет.
	SetOnce(key string, value any, expiration time.Duration) (bool, error)
}

// Service реализует оценщик подписки и журнал квот.
type Service struct {
	accounts    AccountRepository
	packages    PackageRepository
	cache       Cache
	dedupWindow time.Duration
	log         *slog.Logger
}

// New создает новый экземпляр Service. dedupWindow задает окно, в котором
// повторный consume с тем же action_id возвращает первый результат.
func New(accounts AccountRepository, packages PackageRepository, cache Cache,
	dedupWindow time.Duration, log *slog.Logger) *Service {
	return &Service{
		accounts:    accounts,
		packages:    packages,
		cache:       cache,
		dedupWindow: dedupWindow,
		log:         log,
	}
}

const accountCacheTTL = time.Minute

// Evaluate классифицирует аккаунт и отвечает, разрешено ли действие.
// Только чтение, состояние не изменяется.
func (s *Service) Evaluate(ctx context.Context, userUID string, action models.Action,
	now time.Time) (models.EligibilityResult, error) {
	res, _, _, err := s.evaluate(ctx, userUID, action, now)
	if err != nil {
		return models.EligibilityResult{}, err
	}
	if !res.Eligible {
		metrics.DenialsTotal.WithLabelValues(string(res.Reason)).Inc()
	}
	return res, nil
}

// evaluate выполняет классификацию и дополнительно возвращает аккаунт
// и пакет (в пробном режиме), чтобы Consume не перечитывал их.
func (s *Service) evaluate(ctx context.Context, userUID string, action models.Action,
	now time.Time) (models.EligibilityResult, *models.Account, *models.Package, error) {
	acc, found, err := s.getAccount(ctx, userUID)
	if err != nil {
		return models.EligibilityResult{}, nil, nil, err
	}
	if !found {
		return models.Denied(models.ReasonUserNotFound), nil, nil, nil
	}

	if acc.SubscriptionStatus != models.SubscriptionStatusActive {
		return models.Denied(models.ReasonNoSubscription), acc, nil, nil
	}
	if acc.ExpiryDate != nil && acc.ExpiryDate.Before(now) {
		return models.Denied(models.ReasonExpired), acc, nil, nil
	}

	// Трехчастный признак пробного режима унаследован от исходной системы
	// и сохранен как есть, включая сравнение дат активации и истечения.
	trialMode := acc.SubscriptionDate != nil && acc.PackageID != nil &&
		(acc.ExpiryDate == nil || acc.SubscriptionDate.After(*acc.ExpiryDate))

	mode := models.ModePaid
	if trialMode {
		mode = models.ModeTrial
	}

	// Лимит групп не зависит от режима, его окончательная проверка
	// выполняется предикатом списания.
	if action == models.ActionGroup {
		if acc.MaxGroup <= 0 {
			return models.Denied(models.ReasonQuotaExhausted), acc, nil, nil
		}
		return models.Eligible(mode), acc, nil, nil
	}

	if trialMode {
		pkg, found, err := s.packages.GetPackage(ctx, *acc.PackageID)
		if err != nil {
			return models.EligibilityResult{}, nil, nil, err
		}
		if !found {
			return models.Denied(models.ReasonPackageNotFound), acc, nil, nil
		}
		if acc.TrialPostsUsed >= pkg.TrialPosts {
			return models.Denied(models.ReasonTrialLimitExceeded), acc, pkg, nil
		}
		return models.Eligible(models.ModeTrial), acc, pkg, nil
	}

	switch action {
	case models.ActionPost:
		if acc.RemainingPosts != nil && *acc.RemainingPosts <= 0 {
			return models.Denied(models.ReasonQuotaExhausted), acc, nil, nil
		}
	case models.ActionPrompt:
		if acc.RemainingPrompts != nil && *acc.RemainingPrompts <= 0 {
			return models.Denied(models.ReasonQuotaExhausted), acc, nil, nil
		}
	}
	return models.Eligible(models.ModePaid), acc, nil, nil
}

// Consume списывает квоту на действие. Повторный вызов с тем же actionID
// внутри окна дедупликации возвращает первый результат, не меняя счетчики.
func (s *Service) Consume(ctx context.Context, userUID string, action models.Action,
	actionID string, now time.Time) (models.ConsumeResult, error) {
	dedupKey := fmt.Sprintf("consume:%s:%s", userUID, actionID)
	if actionID != "" {
		var prev models.ConsumeResult
		found, err := s.cache.Get(dedupKey, &prev)
		if err != nil {
			s.log.Warn("failed to check consume dedup key", slog.String("key", dedupKey), slog.Any("err", err))
		}
		if found {
			prev.Deduplicated = true
			return prev, nil
		}
	}

	res, _, pkg, err := s.evaluate(ctx, userUID, action, now)
	if err != nil {
		return models.ConsumeResult{}, err
	}
	if !res.Eligible {
		metrics.DenialsTotal.WithLabelValues(string(res.Reason)).Inc()
		return models.ConsumeResult{Consumed: false, Reason: res.Reason}, nil
	}

	var rows int
	deniedReason := models.ReasonQuotaExhausted
	switch {
	case action == models.ActionGroup:
		rows, err = s.accounts.DecrementGroups(ctx, userUID)
	case res.Mode == models.ModeTrial:
		rows, err = s.accounts.IncrementTrialPosts(ctx, userUID, pkg.TrialPosts)
		deniedReason = models.ReasonTrialLimitExceeded
	case action == models.ActionPost:
		rows, err = s.accounts.DecrementPosts(ctx, userUID)
	default:
		rows, err = s.accounts.DecrementPrompts(ctx, userUID)
	}
	if err != nil {
		return models.ConsumeResult{}, err
	}
	if rows == 0 {
		// Конкурентный запрос успел исчерпать счетчик между оценкой
		// и списанием; предикат не прошел, состояние не изменилось.
		metrics.DenialsTotal.WithLabelValues(string(deniedReason)).Inc()
		return models.ConsumeResult{Consumed: false, Mode: res.Mode, Reason: deniedReason}, nil
	}

	s.invalidateAccount(userUID)
	result := models.ConsumeResult{Consumed: true, Mode: res.Mode}
	if actionID != "" {
		if _, err := s.cache.SetOnce(dedupKey, result, s.dedupWindow); err != nil {
			s.log.Warn("failed to store consume dedup key", slog.String("key", dedupKey), slog.Any("err", err))
		}
	}
	metrics.ConsumesTotal.WithLabelValues(string(res.Mode), string(action)).Inc()
	s.log.Info("quota consumed",
		slog.String("user_uid", userUID),
		slog.String("action", string(action)),
		slog.String("mode", string(res.Mode)))
	return result, nil
}

func (s *Service) getAccount(ctx context.Context, userUID string) (*models.Account, bool, error) {
	cacheKey := "account:" + userUID
	var cached *models.Account
	found, err := s.cache.Get(cacheKey, &cached)
	if err != nil {
		s.log.Warn("failed to read account from cache", slog.String("key", cacheKey), slog.Any("err", err))
	}
	if found && cached != nil {
		return cached, true, nil
	}

	acc, found, err := s.accounts.GetAccount(ctx, userUID)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	if err := s.cache.Set(cacheKey, acc, accountCacheTTL); err != nil {
		s.log.Warn("failed to cache account", slog.String("key", cacheKey), slog.Any("err", err))
	}
	return acc, true, nil
}

func (s *Service) invalidateAccount(userUID string) {
	cacheKey := "account:" + userUID
	if err := s.cache.Invalidate(cacheKey); err != nil {
		s.log.Warn("failed to invalidate account cache", slog.String("key", cacheKey), slog.Any("err", err))
	}
}
