package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/entitlement-engine/internal/models"
)

// setupTestDatabase поднимает контейнер PostgreSQL и применяет схему движка.
func setupTestDatabase(t *testing.T) (*Storage, func()) {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(3*time.Minute),
		),
	)
	require.NoError(t, err, "failed to start container")

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err, "failed to get host")
	port, err := pgContainer.MappedPort(ctx, nat.Port("5432/tcp"))
	require.NoError(t, err, "failed to get port")

	connStr := fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port())

	var storage *Storage
	for range 10 {
		storage, err = New(connStr)
		if err == nil {
			break
		}
		time.Sleep(1 * time.Second)
	}
	require.NoError(t, err, "failed to create storage after retries")

	_, err = storage.DB.Exec(`
        CREATE EXTENSION IF NOT EXISTS "uuid-ossp";

        CREATE TABLE packages (
            package_id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
            name TEXT NOT NULL,
            duration TEXT NOT NULL,
            package_limit INTEGER,
            trial_posts INTEGER NOT NULL DEFAULT 0,
            storage INTEGER NOT NULL DEFAULT 0,
            max_group INTEGER NOT NULL DEFAULT 0,
            price BIGINT NOT NULL DEFAULT 0,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );

        CREATE TABLE accounts (
            user_uid TEXT PRIMARY KEY,
            subscription_status TEXT NOT NULL DEFAULT 'none',
            package_id UUID REFERENCES packages(package_id),
            subscription_date TIMESTAMPTZ,
            expiry_date TIMESTAMPTZ,
            remaining_posts INTEGER,
            remaining_prompts INTEGER,
            trial_posts_used INTEGER NOT NULL DEFAULT 0,
            trial_package BOOLEAN NOT NULL DEFAULT FALSE,
            max_group INTEGER NOT NULL DEFAULT 0,
            storage INTEGER NOT NULL DEFAULT 0,
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            CONSTRAINT remaining_posts_non_negative CHECK (remaining_posts IS NULL OR remaining_posts >= 0),
            CONSTRAINT remaining_prompts_non_negative CHECK (remaining_prompts IS NULL OR remaining_prompts >= 0),
            CONSTRAINT max_group_non_negative CHECK (max_group >= 0)
        );

        CREATE TABLE payments (
            id UUID PRIMARY KEY,
            user_uid TEXT NOT NULL,
            payment_id TEXT NOT NULL DEFAULT '',
            package_id UUID NOT NULL,
            amount BIGINT NOT NULL DEFAULT 0,
            currency TEXT NOT NULL DEFAULT '',
            status TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );

        CREATE TABLE subscription_records (
            id UUID PRIMARY KEY,
            user_uid TEXT NOT NULL,
            package_id UUID NOT NULL,
            status TEXT NOT NULL,
            expiry_date TIMESTAMPTZ NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );
    `)
	require.NoError(t, err, "failed to create tables")

	cleanup := func() {
		if storage != nil && storage.DB != nil {
			_ = storage.DB.Close()
		}
		if pgContainer != nil {
			_ = pgContainer.Terminate(ctx)
		}
	}

	return storage, cleanup
}

// createTestPackage добавляет пакет в каталог и возвращает его идентификатор.
func createTestPackage(t *testing.T, storage *Storage, packageLimit *int, trialPosts int) string {
	packageID, err := storage.CreatePackage(context.Background(), models.Package{
		Name:         "Test",
		Duration:     "1 year",
		PackageLimit: packageLimit,
		TrialPosts:   trialPosts,
		Storage:      100,
		MaxGroup:     3,
		Price:        9900,
	})
	require.NoError(t, err)
	return packageID
}

// createTestAccount вставляет аккаунт с заданными остатками счетчиков.
func createTestAccount(t *testing.T, storage *Storage, userUID, packageID string,
	remainingPosts, remainingPrompts *int, maxGroup int) {
	_, err := storage.DB.Exec(`INSERT INTO accounts
		(user_uid, subscription_status, package_id, subscription_date, expiry_date,
		 remaining_posts, remaining_prompts, max_group)
		VALUES ($1, 'active', $2, NOW(), NOW() + INTERVAL '1 year', $3, $4, $5)`,
		userUID, packageID, remainingPosts, remainingPrompts, maxGroup)
	require.NoError(t, err)
}

func intPtr(v int) *int { return &v }

func TestStorage_DecrementPosts_Concurrent(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	limit := 3
	packageID := createTestPackage(t, storage, &limit, 0)
	createTestAccount(t, storage, "uid-1", packageID, intPtr(limit), intPtr(limit), 3)

	// 10 конкурентных списаний при остатке 3: пройти должны ровно 3,
	// условие в предикате не дает счетчику уйти ниже нуля.
	const workers = 10
	var wg sync.WaitGroup
	results := make(chan int, workers)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rows, err := storage.DecrementPosts(context.Background(), "uid-1")
			assert.NoError(t, err)
			results <- rows
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for rows := range results {
		succeeded += rows
	}
	assert.Equal(t, limit, succeeded)

	acc, found, err := storage.GetAccount(context.Background(), "uid-1")
	require.NoError(t, err)
	require.True(t, found)
	require.NotNil(t, acc.RemainingPosts)
	assert.Equal(t, 0, *acc.RemainingPosts)
}

func TestStorage_DecrementPosts_Unlimited(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	packageID := createTestPackage(t, storage, nil, 0)
	createTestAccount(t, storage, "uid-1", packageID, nil, nil, 0)

	// NULL означает безлимит: списание проходит, счетчик остается NULL.
	for range 5 {
		rows, err := storage.DecrementPosts(context.Background(), "uid-1")
		require.NoError(t, err)
		assert.Equal(t, 1, rows)
	}

	acc, found, err := storage.GetAccount(context.Background(), "uid-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Nil(t, acc.RemainingPosts)
}

func TestStorage_DecrementGroups(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	packageID := createTestPackage(t, storage, intPtr(10), 0)
	createTestAccount(t, storage, "uid-1", packageID, intPtr(10), intPtr(10), 1)

	rows, err := storage.DecrementGroups(context.Background(), "uid-1")
	require.NoError(t, err)
	assert.Equal(t, 1, rows)

	rows, err = storage.DecrementGroups(context.Background(), "uid-1")
	require.NoError(t, err)
	assert.Equal(t, 0, rows)
}

func TestStorage_IncrementTrialPosts(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	packageID := createTestPackage(t, storage, intPtr(10), 2)
	createTestAccount(t, storage, "uid-1", packageID, intPtr(10), intPtr(10), 0)

	for i := range 2 {
		rows, err := storage.IncrementTrialPosts(context.Background(), "uid-1", 2)
		require.NoError(t, err)
		assert.Equal(t, 1, rows, "increment %d should pass", i)
	}

	rows, err := storage.IncrementTrialPosts(context.Background(), "uid-1", 2)
	require.NoError(t, err)
	assert.Equal(t, 0, rows, "limit reached, increment must be rejected")

	acc, found, err := storage.GetAccount(context.Background(), "uid-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 2, acc.TrialPostsUsed)
}

func TestStorage_ApplyActivation(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	limit := 50
	packageID := createTestPackage(t, storage, &limit, 3)
	now := time.Now().UTC()
	expiry := now.AddDate(1, 0, 0)

	acc := models.Account{
		UserUID:            "uid-1",
		SubscriptionStatus: models.SubscriptionStatusActive,
		PackageID:          &packageID,
		SubscriptionDate:   &now,
		ExpiryDate:         &expiry,
		RemainingPosts:     &limit,
		RemainingPrompts:   &limit,
		MaxGroup:           3,
		Storage:            100,
		UpdatedAt:          now,
	}

	t.Run("free activation creates account and marks trial", func(t *testing.T) {
		rows, err := storage.ApplyActivation(context.Background(), acc, true)
		require.NoError(t, err)
		assert.Equal(t, 1, rows)

		got, found, err := storage.GetAccount(context.Background(), "uid-1")
		require.NoError(t, err)
		require.True(t, found)
		assert.True(t, got.TrialPackage)
		require.NotNil(t, got.RemainingPosts)
		assert.Equal(t, limit, *got.RemainingPosts)
	})

	t.Run("second free activation is rejected without mutation", func(t *testing.T) {
		rows, err := storage.ApplyActivation(context.Background(), acc, true)
		require.NoError(t, err)
		assert.Equal(t, 0, rows)
	})

	t.Run("paid activation refills quotas and keeps trial flag", func(t *testing.T) {
		_, err := storage.DecrementPosts(context.Background(), "uid-1")
		require.NoError(t, err)

		rows, err := storage.ApplyActivation(context.Background(), acc, false)
		require.NoError(t, err)
		assert.Equal(t, 1, rows)

		got, found, err := storage.GetAccount(context.Background(), "uid-1")
		require.NoError(t, err)
		require.True(t, found)
		assert.True(t, got.TrialPackage, "trial flag survives paid reactivation")
		require.NotNil(t, got.RemainingPosts)
		assert.Equal(t, limit, *got.RemainingPosts)
	})
}

func TestStorage_PaymentsAudit(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	packageID := createTestPackage(t, storage, intPtr(10), 0)

	first := models.Payment{
		ID:        "6ba7b810-9dad-11d1-80b4-00c04fd430c8",
		UserUID:   "uid-1",
		PaymentID: "pay-1",
		PackageID: packageID,
		Amount:    9900,
		Currency:  "RUB",
		Status:    models.PaymentStatusCompleted,
	}
	second := first
	second.ID = "6ba7b811-9dad-11d1-80b4-00c04fd430c8"
	second.PaymentID = "pay-2"

	_, err := storage.SavePayment(context.Background(), first)
	require.NoError(t, err)
	time.Sleep(10 * time.Millisecond)
	_, err = storage.SavePayment(context.Background(), second)
	require.NoError(t, err)

	_, err = storage.SaveSubscriptionRecord(context.Background(), models.SubscriptionRecord{
		ID:         "6ba7b812-9dad-11d1-80b4-00c04fd430c8",
		UserUID:    "uid-1",
		PackageID:  packageID,
		Status:     models.SubscriptionStatusActive,
		ExpiryDate: time.Now().AddDate(1, 0, 0),
	})
	require.NoError(t, err)

	payments, err := storage.ListPayments(context.Background(), "uid-1")
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, "pay-2", payments[0].PaymentID, "newest payment comes first")
	assert.Equal(t, "pay-1", payments[1].PaymentID)

	other, err := storage.ListPayments(context.Background(), "uid-2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestStorage_Packages(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	packageID := createTestPackage(t, storage, intPtr(10), 1)

	pkg, found, err := storage.GetPackage(context.Background(), packageID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Test", pkg.Name)
	require.NotNil(t, pkg.PackageLimit)
	assert.Equal(t, 10, *pkg.PackageLimit)

	_, found, err = storage.GetPackage(context.Background(), "6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	require.NoError(t, err)
	assert.False(t, found)

	list, err := storage.ListPackages(context.Background(), 10, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}
