// Package activation содержит бизнес-логику активации тарифных пакетов.
//
// Активация — единственный писатель, устанавливающий состояние подписки
// и наполняющий квоты. Записи аудита о платеже и подписке долговечнее
// обновления аккаунта: они фиксируются первыми, и если обновление аккаунта
// после этого не удается, ошибка поднимается с идентификатором платежа
// для ручной сверки, а не проглатывается.
package activation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/entitlement-engine/internal/lib/duration"
	"github.com/magabrotheeeer/entitlement-engine/internal/metrics"
	"github.com/magabrotheeeer/entitlement-engine/internal/models"
)

// AccountRepository определяет методы записи состояния аккаунта.
type AccountRepository interface {
	// GetAccount возвращает аккаунт по uid; false — аккаунт не найден.
	GetAccount(ctx context.Context, userUID string) (*models.Account, bool, error)
	// ApplyActivation применяет активацию одним оператором;
	// 0 изменённых строк при freeTier означает, что пробный пакет уже использован.
	ApplyActivation(ctx context.Context, acc models.Account, freeTier bool) (int, error)
}

// PackageRepository определяет методы чтения тарифных пакетов.
type PackageRepository interface {
	GetPackage(ctx context.Context, packageID string) (*models.Package, bool, error)
}

// AuditRepository определяет журнал аудита платежей и активаций.
// Записи только добавляются и никогда не изменяются.
type AuditRepository interface {
	SavePayment(ctx context.Context, p models.Payment) (string, error)
	SaveSubscriptionRecord(ctx context.Context, r models.SubscriptionRecord) (string, error)
}

// Cache описывает методы инвалидации кеша аккаунтов.
type Cache interface {
	Invalidate(key string) error
}

// Publisher публикует событие активации в очередь уведомлений.
type Publisher interface {
	PublishActivation(event models.ActivationEvent) error
}

// Service реализует процедуру активации пакета.
type Service struct {
	accounts AccountRepository
	packages PackageRepository
	audit    AuditRepository
	cache    Cache
	pub      Publisher
	log      *slog.Logger
}

// New создает новый экземпляр Service.
func New(accounts AccountRepository, packages PackageRepository, audit AuditRepository,
	cache Cache, pub Publisher, log *slog.Logger) *Service {
	return &Service{
		accounts: accounts,
		packages: packages,
		audit:    audit,
		cache:    cache,
		pub:      pub,
		log:      log,
	}
}

// Activate привязывает пакет к аккаунту. payment равен nil при активации
// бесплатного (пробного) пакета; платные активации принимают только уже
// подтверждённые платежи — шлюз подтверждает их до вызова этого метода.
// userEmail используется только в событии уведомления и может быть пустым.
func (s *Service) Activate(ctx context.Context, userUID, userEmail, packageID string,
	payment *models.Payment, now time.Time) (models.ActivationResult, error) {
	const op = "services.activation.Activate"

	pkg, found, err := s.packages.GetPackage(ctx, packageID)
	if err != nil {
		return models.ActivationResult{}, fmt.Errorf("%s: %w", op, err)
	}
	if !found {
		return models.ActivationResult{Activated: false, Reason: models.ReasonPackageNotFound}, nil
	}

	freeTier := payment == nil
	if freeTier {
		acc, found, err := s.accounts.GetAccount(ctx, userUID)
		if err != nil {
			return models.ActivationResult{}, fmt.Errorf("%s: %w", op, err)
		}
		if found && acc.TrialPackage {
			return models.ActivationResult{Activated: false, Reason: models.ReasonTrialAlreadyUsed}, nil
		}
	}

	expiryDate := duration.AddTo(now, pkg.Duration)
	paymentRecordID := uuid.New().String()

	// Для платной активации журнал аудита пишется до обновления аккаунта:
	// подтверждённый платеж не должен потеряться, даже если запись аккаунта
	// не удастся. Бесплатная активация, наоборот, сначала проходит предикат
	// пробного пакета, чтобы отказ не оставлял следов в журнале.
	if !freeTier {
		if err := s.writeAudit(ctx, paymentRecordID, userUID, pkg, payment, expiryDate); err != nil {
			return models.ActivationResult{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	acc := models.Account{
		UserUID:            userUID,
		SubscriptionStatus: models.SubscriptionStatusActive,
		PackageID:          &pkg.PackageID,
		SubscriptionDate:   &now,
		ExpiryDate:         &expiryDate,
		RemainingPosts:     pkg.PackageLimit,
		RemainingPrompts:   pkg.PackageLimit,
		MaxGroup:           pkg.MaxGroup,
		Storage:            pkg.Storage,
		UpdatedAt:          now,
	}
	rows, err := s.accounts.ApplyActivation(ctx, acc, freeTier)
	if err != nil {
		if freeTier {
			return models.ActivationResult{}, fmt.Errorf("%s: account update failed: %w", op, err)
		}
		// Платеж уже зафиксирован в журнале — идентификатор уходит в ошибку
		// для сверки, активацию нельзя молча потерять.
		return models.ActivationResult{}, fmt.Errorf("%s: account update failed after audit, payment %s: %w",
			op, paymentRecordID, err)
	}
	if rows == 0 {
		if freeTier {
			return models.ActivationResult{Activated: false, Reason: models.ReasonTrialAlreadyUsed}, nil
		}
		return models.ActivationResult{Activated: false, Reason: models.ReasonPersistenceConflict}, nil
	}

	if freeTier {
		if err := s.writeAudit(ctx, paymentRecordID, userUID, pkg, nil, expiryDate); err != nil {
			return models.ActivationResult{}, fmt.Errorf("%s: activation applied but audit failed: %w", op, err)
		}
	}

	if err := s.cache.Invalidate("account:" + userUID); err != nil {
		s.log.Warn("failed to invalidate account cache", slog.String("user_uid", userUID), slog.Any("err", err))
	}

	event := models.ActivationEvent{
		Email:       userEmail,
		Username:    userUID,
		PackageName: pkg.Name,
		ExpiryDate:  expiryDate,
		FreeTier:    freeTier,
	}
	if err := s.pub.PublishActivation(event); err != nil {
		s.log.Warn("failed to publish activation event", slog.String("user_uid", userUID), slog.Any("err", err))
	}

	metrics.ActivationsTotal.WithLabelValues(fmt.Sprintf("%t", freeTier)).Inc()
	s.log.Info("package activated",
		slog.String("user_uid", userUID),
		slog.String("package_id", pkg.PackageID),
		slog.Time("expiry_date", expiryDate),
		slog.Bool("free_tier", freeTier))

	return models.ActivationResult{
		Activated:        true,
		UserUID:          userUID,
		PackageID:        pkg.PackageID,
		SubscriptionDate: now,
		ExpiryDate:       expiryDate,
		PaymentID:        paymentRecordID,
		FreeTier:         freeTier,
	}, nil
}

func (s *Service) writeAudit(ctx context.Context, paymentRecordID, userUID string,
	pkg *models.Package, payment *models.Payment, expiryDate time.Time) error {
	auditPayment := models.Payment{
		ID:        paymentRecordID,
		UserUID:   userUID,
		PackageID: pkg.PackageID,
		Status:    models.PaymentStatusCompleted,
	}
	if payment != nil {
		auditPayment.PaymentID = payment.PaymentID
		auditPayment.Amount = payment.Amount
		auditPayment.Currency = payment.Currency
	}
	if _, err := s.audit.SavePayment(ctx, auditPayment); err != nil {
		return fmt.Errorf("save payment: %w", err)
	}

	record := models.SubscriptionRecord{
		ID:         uuid.New().String(),
		UserUID:    userUID,
		PackageID:  pkg.PackageID,
		Status:     models.SubscriptionStatusActive,
		ExpiryDate: expiryDate,
	}
	if _, err := s.audit.SaveSubscriptionRecord(ctx, record); err != nil {
		return fmt.Errorf("save subscription record, payment %s: %w", paymentRecordID, err)
	}
	return nil
}
