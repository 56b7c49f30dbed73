package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/magabrotheeeer/entitlement-engine/internal/models"
)

// GetAccount возвращает аккаунт по uid пользователя.
// Второе возвращаемое значение false означает, что аккаунт не найден.
func (s *Storage) GetAccount(ctx context.Context, userUID string) (*models.Account, bool, error) {
	const op = "storage.GetAccount"
	select {
	case <-ctx.Done():
		return nil, false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT user_uid, subscription_status, package_id, subscription_date, expiry_date,
			      remaining_posts, remaining_prompts, trial_posts_used, trial_package,
			      max_group, storage, updated_at
			  FROM accounts WHERE user_uid = $1`
	row := s.DB.QueryRowContext(ctx, query, userUID)

	acc := &models.Account{}
	var packageID sql.NullString
	var subscriptionDate, expiryDate sql.NullTime
	var remainingPosts, remainingPrompts sql.NullInt64
	if err := row.Scan(&acc.UserUID, &acc.SubscriptionStatus, &packageID, &subscriptionDate,
		&expiryDate, &remainingPosts, &remainingPrompts, &acc.TrialPostsUsed, &acc.TrialPackage,
		&acc.MaxGroup, &acc.Storage, &acc.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%s: %w", op, err)
	}

	if packageID.Valid {
		acc.PackageID = &packageID.String
	}
	if subscriptionDate.Valid {
		acc.SubscriptionDate = &subscriptionDate.Time
	}
	if expiryDate.Valid {
		acc.ExpiryDate = &expiryDate.Time
	}
	if remainingPosts.Valid {
		v := int(remainingPosts.Int64)
		acc.RemainingPosts = &v
	}
	if remainingPrompts.Valid {
		v := int(remainingPrompts.Int64)
		acc.RemainingPrompts = &v
	}
	return acc, true, nil
}

// DecrementPosts списывает один пост у платного аккаунта и возвращает
// количество изменённых строк. Условие в предикате делает проверку
// и списание одним атомарным оператором: NULL (безлимит) проходит проверку
// и остаётся NULL после вычитания, счетчик никогда не уходит ниже нуля.
func (s *Storage) DecrementPosts(ctx context.Context, userUID string) (int, error) {
	const op = "storage.DecrementPosts"
	return s.decrementCounter(ctx, op, userUID,
		`UPDATE accounts
		 SET remaining_posts = remaining_posts - 1, updated_at = NOW()
		 WHERE user_uid = $1 AND (remaining_posts IS NULL OR remaining_posts > 0)`)
}

// DecrementPrompts списывает один промпт у платного аккаунта.
func (s *Storage) DecrementPrompts(ctx context.Context, userUID string) (int, error) {
	const op = "storage.DecrementPrompts"
	return s.decrementCounter(ctx, op, userUID,
		`UPDATE accounts
		 SET remaining_prompts = remaining_prompts - 1, updated_at = NOW()
		 WHERE user_uid = $1 AND (remaining_prompts IS NULL OR remaining_prompts > 0)`)
}

// DecrementGroups списывает одно создание группы, не зависит от режима.
func (s *Storage) DecrementGroups(ctx context.Context, userUID string) (int, error) {
	const op = "storage.DecrementGroups"
	return s.decrementCounter(ctx, op, userUID,
		`UPDATE accounts
		 SET max_group = max_group - 1, updated_at = NOW()
		 WHERE user_uid = $1 AND max_group > 0`)
}

func (s *Storage) decrementCounter(ctx context.Context, op, userUID, query string) (int, error) {
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	result, err := s.DB.ExecContext(ctx, query, userUID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// IncrementTrialPosts увеличивает счетчик пробных постов, пока он не достиг
// лимита пакета. Возвращает количество изменённых строк: 0 означает,
// что лимит уже исчерпан.
func (s *Storage) IncrementTrialPosts(ctx context.Context, userUID string, limit int) (int, error) {
	const op = "storage.IncrementTrialPosts"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE accounts
			  SET trial_posts_used = trial_posts_used + 1, updated_at = NOW()
			  WHERE user_uid = $1 AND trial_posts_used < $2`
	result, err := s.DB.ExecContext(ctx, query, userUID, limit)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// ApplyActivation записывает результат активации пакета одним оператором:
// статус подписки, даты и квоты нового пакета становятся видимыми одновременно,
// читатель не может увидеть active со старыми квотами. Для бесплатной
// активации предикат отклоняет аккаунты, уже использовавшие пробный пакет,
// и тогда возвращается 0 изменённых строк.
func (s *Storage) ApplyActivation(ctx context.Context, acc models.Account, freeTier bool) (int, error) {
	const op = "storage.ApplyActivation"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO accounts (user_uid, subscription_status, package_id, subscription_date,
			      expiry_date, remaining_posts, remaining_prompts, trial_posts_used,
			      trial_package, max_group, storage, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, 0, $8, $9, $10, $4)
			  ON CONFLICT (user_uid) DO UPDATE SET
			      subscription_status = EXCLUDED.subscription_status,
			      package_id = EXCLUDED.package_id,
			      subscription_date = EXCLUDED.subscription_date,
			      expiry_date = EXCLUDED.expiry_date,
			      remaining_posts = EXCLUDED.remaining_posts,
			      remaining_prompts = EXCLUDED.remaining_prompts,
			      trial_package = accounts.trial_package OR EXCLUDED.trial_package,
			      max_group = EXCLUDED.max_group,
			      storage = EXCLUDED.storage,
			      updated_at = EXCLUDED.updated_at`
	if freeTier {
		query += ` WHERE accounts.trial_package = FALSE`
	}

	var remaining sql.NullInt64
	if acc.RemainingPosts != nil {
		remaining = sql.NullInt64{Int64: int64(*acc.RemainingPosts), Valid: true}
	}
	var expiry sql.NullTime
	if acc.ExpiryDate != nil {
		expiry = sql.NullTime{Time: *acc.ExpiryDate, Valid: true}
	}
	var subscriptionDate time.Time
	if acc.SubscriptionDate != nil {
		subscriptionDate = *acc.SubscriptionDate
	}

	result, err := s.DB.ExecContext(ctx, query,
		acc.UserUID, acc.SubscriptionStatus, acc.PackageID, subscriptionDate, expiry,
		remaining, remaining, freeTier, acc.MaxGroup, acc.Storage)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}
