package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/entitlement-engine/internal/models"
)

// SavePayment добавляет запись аудита о платеже. Записи никогда не обновляются.
func (s *Storage) SavePayment(ctx context.Context, p models.Payment) (string, error) {
	const op = "storage.SavePayment"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO payments (id, user_uid, payment_id, package_id, amount, currency, status, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
			  RETURNING id`
	var newID string
	err := s.DB.QueryRowContext(ctx, query,
		p.ID, p.UserUID, p.PaymentID, p.PackageID, p.Amount, p.Currency, p.Status).Scan(&newID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// SaveSubscriptionRecord добавляет запись аудита об активации подписки.
func (s *Storage) SaveSubscriptionRecord(ctx context.Context, r models.SubscriptionRecord) (string, error) {
	const op = "storage.SaveSubscriptionRecord"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO subscription_records (id, user_uid, package_id, status, expiry_date, created_at)
			  VALUES ($1, $2, $3, $4, $5, NOW())
			  RETURNING id`
	var newID string
	err := s.DB.QueryRowContext(ctx, query,
		r.ID, r.UserUID, r.PackageID, r.Status, r.ExpiryDate).Scan(&newID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// ListPayments возвращает журнал платежей пользователя.
func (s *Storage) ListPayments(ctx context.Context, userUID string) ([]*models.Payment, error) {
	const op = "storage.ListPayments"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_uid, payment_id, package_id, amount, currency, status, created_at
			  FROM payments
			  WHERE user_uid = $1
			  ORDER BY created_at DESC`
	rows, err := s.DB.QueryContext(ctx, query, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Payment
	for rows.Next() {
		var p models.Payment
		if err := rows.Scan(&p.ID, &p.UserUID, &p.PaymentID, &p.PackageID, &p.Amount,
			&p.Currency, &p.Status, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &p)
	}
	return result, nil
}
