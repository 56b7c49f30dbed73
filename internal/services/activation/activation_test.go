package activation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/entitlement-engine/internal/models"
)

type AccountsMock struct{ mock.Mock }

func (m *AccountsMock) GetAccount(ctx context.Context, userUID string) (*models.Account, bool, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.Account), args.Bool(1), args.Error(2)
}
func (m *AccountsMock) ApplyActivation(ctx context.Context, acc models.Account, freeTier bool) (int, error) {
	args := m.Called(ctx, acc, freeTier)
	return args.Int(0), args.Error(1)
}

type PackagesMock struct{ mock.Mock }

func (m *PackagesMock) GetPackage(ctx context.Context, packageID string) (*models.Package, bool, error) {
	args := m.Called(ctx, packageID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.Package), args.Bool(1), args.Error(2)
}

type AuditMock struct{ mock.Mock }

func (m *AuditMock) SavePayment(ctx context.Context, p models.Payment) (string, error) {
	args := m.Called(ctx, p)
	return args.String(0), args.Error(1)
}
func (m *AuditMock) SaveSubscriptionRecord(ctx context.Context, r models.SubscriptionRecord) (string, error) {
	args := m.Called(ctx, r)
	return args.String(0), args.Error(1)
}

type CacheMock struct{ mock.Mock }

func (m *CacheMock) Invalidate(key string) error {
	return m.Called(key).Error(0)
}

type PublisherMock struct{ mock.Mock }

func (m *PublisherMock) PublishActivation(event models.ActivationEvent) error {
	return m.Called(event).Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func intPtr(v int) *int { return &v }

func TestService_Activate_Free(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	pkg := &models.Package{
		PackageID:    "pkg1",
		Name:         "Starter",
		Duration:     "1 month",
		PackageLimit: intPtr(5),
		TrialPosts:   3,
		MaxGroup:     2,
		Storage:      100,
	}

	t.Run("free activation fills quotas and marks trial used", func(t *testing.T) {
		accounts := new(AccountsMock)
		packages := new(PackagesMock)
		audit := new(AuditMock)
		cache := new(CacheMock)
		pub := new(PublisherMock)
		svc := New(accounts, packages, audit, cache, pub, newNoopLogger())

		packages.On("GetPackage", mock.Anything, "pkg1").Return(pkg, true, nil).Once()
		accounts.On("GetAccount", mock.Anything, "user1").Return(nil, false, nil).Once()
		accounts.On("ApplyActivation", mock.Anything, mock.MatchedBy(func(acc models.Account) bool {
			return acc.UserUID == "user1" &&
				acc.SubscriptionStatus == models.SubscriptionStatusActive &&
				acc.PackageID != nil && *acc.PackageID == "pkg1" &&
				acc.RemainingPosts != nil && *acc.RemainingPosts == 5 &&
				acc.RemainingPrompts != nil && *acc.RemainingPrompts == 5 &&
				acc.MaxGroup == 2 && acc.Storage == 100 &&
				acc.ExpiryDate != nil && acc.ExpiryDate.Equal(now.AddDate(0, 1, 0))
		}), true).Return(1, nil).Once()
		audit.On("SavePayment", mock.Anything, mock.MatchedBy(func(p models.Payment) bool {
			return p.UserUID == "user1" && p.PackageID == "pkg1" && p.Status == models.PaymentStatusCompleted
		})).Return("payment-record", nil).Once()
		audit.On("SaveSubscriptionRecord", mock.Anything, mock.MatchedBy(func(r models.SubscriptionRecord) bool {
			return r.UserUID == "user1" && r.PackageID == "pkg1" &&
				r.Status == models.SubscriptionStatusActive && r.ExpiryDate.Equal(now.AddDate(0, 1, 0))
		})).Return("sub-record", nil).Once()
		cache.On("Invalidate", "account:user1").Return(nil).Once()
		pub.On("PublishActivation", mock.MatchedBy(func(e models.ActivationEvent) bool {
			return e.PackageName == "Starter" && e.FreeTier
		})).Return(nil).Once()

		got, err := svc.Activate(context.Background(), "user1", "user1@example.com", "pkg1", nil, now)
		require.NoError(t, err)
		assert.True(t, got.Activated)
		assert.True(t, got.FreeTier)
		assert.Equal(t, now.AddDate(0, 1, 0), got.ExpiryDate)

		accounts.AssertExpectations(t)
		packages.AssertExpectations(t)
		audit.AssertExpectations(t)
		cache.AssertExpectations(t)
		pub.AssertExpectations(t)
	})

	t.Run("free activation rejected once trial was used, no mutation", func(t *testing.T) {
		accounts := new(AccountsMock)
		packages := new(PackagesMock)
		audit := new(AuditMock)
		cache := new(CacheMock)
		pub := new(PublisherMock)
		svc := New(accounts, packages, audit, cache, pub, newNoopLogger())

		packages.On("GetPackage", mock.Anything, "pkg1").Return(pkg, true, nil).Once()
		accounts.On("GetAccount", mock.Anything, "user1").Return(&models.Account{
			UserUID:      "user1",
			TrialPackage: true,
		}, true, nil).Once()

		got, err := svc.Activate(context.Background(), "user1", "user1@example.com", "pkg1", nil, now)
		require.NoError(t, err)
		assert.False(t, got.Activated)
		assert.Equal(t, models.ReasonTrialAlreadyUsed, got.Reason)

		accounts.AssertExpectations(t)
		audit.AssertNotCalled(t, "SavePayment", mock.Anything, mock.Anything)
		accounts.AssertNotCalled(t, "ApplyActivation", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("concurrent trial claim caught by the upsert predicate", func(t *testing.T) {
		accounts := new(AccountsMock)
		packages := new(PackagesMock)
		audit := new(AuditMock)
		cache := new(CacheMock)
		pub := new(PublisherMock)
		svc := New(accounts, packages, audit, cache, pub, newNoopLogger())

		packages.On("GetPackage", mock.Anything, "pkg1").Return(pkg, true, nil).Once()
		accounts.On("GetAccount", mock.Anything, "user1").Return(nil, false, nil).Once()
		accounts.On("ApplyActivation", mock.Anything, mock.Anything, true).Return(0, nil).Once()

		got, err := svc.Activate(context.Background(), "user1", "user1@example.com", "pkg1", nil, now)
		require.NoError(t, err)
		assert.False(t, got.Activated)
		assert.Equal(t, models.ReasonTrialAlreadyUsed, got.Reason)

		audit.AssertNotCalled(t, "SavePayment", mock.Anything, mock.Anything)
	})
}

func TestService_Activate_Paid(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	pkg := &models.Package{
		PackageID: "pkg2",
		Name:      "Pro",
		Duration:  "1 year",
		MaxGroup:  10,
	}
	payment := &models.Payment{
		PaymentID: "gw-12345",
		Amount:    9900,
		Currency:  "USD",
	}

	t.Run("paid activation with unlimited package", func(t *testing.T) {
		accounts := new(AccountsMock)
		packages := new(PackagesMock)
		audit := new(AuditMock)
		cache := new(CacheMock)
		pub := new(PublisherMock)
		svc := New(accounts, packages, audit, cache, pub, newNoopLogger())

		packages.On("GetPackage", mock.Anything, "pkg2").Return(pkg, true, nil).Once()
		audit.On("SavePayment", mock.Anything, mock.MatchedBy(func(p models.Payment) bool {
			return p.PaymentID == "gw-12345" && p.Amount == 9900 && p.Currency == "USD"
		})).Return("payment-record", nil).Once()
		audit.On("SaveSubscriptionRecord", mock.Anything, mock.Anything).Return("sub-record", nil).Once()
		accounts.On("ApplyActivation", mock.Anything, mock.MatchedBy(func(acc models.Account) bool {
			return acc.RemainingPosts == nil && acc.RemainingPrompts == nil &&
				acc.ExpiryDate != nil && acc.ExpiryDate.Equal(now.AddDate(1, 0, 0))
		}), false).Return(1, nil).Once()
		cache.On("Invalidate", "account:user1").Return(nil).Once()
		pub.On("PublishActivation", mock.Anything).Return(nil).Once()

		got, err := svc.Activate(context.Background(), "user1", "user1@example.com", "pkg2", payment, now)
		require.NoError(t, err)
		assert.True(t, got.Activated)
		assert.False(t, got.FreeTier)
		assert.NotEmpty(t, got.PaymentID)

		accounts.AssertExpectations(t)
		audit.AssertExpectations(t)
	})

	t.Run("account update failure after audit surfaces payment id", func(t *testing.T) {
		accounts := new(AccountsMock)
		packages := new(PackagesMock)
		audit := new(AuditMock)
		cache := new(CacheMock)
		pub := new(PublisherMock)
		svc := New(accounts, packages, audit, cache, pub, newNoopLogger())

		packages.On("GetPackage", mock.Anything, "pkg2").Return(pkg, true, nil).Once()
		audit.On("SavePayment", mock.Anything, mock.Anything).Return("payment-record", nil).Once()
		audit.On("SaveSubscriptionRecord", mock.Anything, mock.Anything).Return("sub-record", nil).Once()
		accounts.On("ApplyActivation", mock.Anything, mock.Anything, false).
			Return(0, errors.New("connection reset")).Once()

		_, err := svc.Activate(context.Background(), "user1", "user1@example.com", "pkg2", payment, now)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "payment")

		audit.AssertExpectations(t)
		pub.AssertNotCalled(t, "PublishActivation", mock.Anything)
	})

	t.Run("unknown package", func(t *testing.T) {
		accounts := new(AccountsMock)
		packages := new(PackagesMock)
		audit := new(AuditMock)
		cache := new(CacheMock)
		pub := new(PublisherMock)
		svc := New(accounts, packages, audit, cache, pub, newNoopLogger())

		packages.On("GetPackage", mock.Anything, "missing").Return(nil, false, nil).Once()

		got, err := svc.Activate(context.Background(), "user1", "user1@example.com", "missing", payment, now)
		require.NoError(t, err)
		assert.False(t, got.Activated)
		assert.Equal(t, models.ReasonPackageNotFound, got.Reason)
	})

	t.Run("garbage duration falls back to one year", func(t *testing.T) {
		accounts := new(AccountsMock)
		packages := new(PackagesMock)
		audit := new(AuditMock)
		cache := new(CacheMock)
		pub := new(PublisherMock)
		svc := New(accounts, packages, audit, cache, pub, newNoopLogger())

		oddPkg := &models.Package{PackageID: "pkg3", Name: "Odd", Duration: "forever and ever"}
		packages.On("GetPackage", mock.Anything, "pkg3").Return(oddPkg, true, nil).Once()
		audit.On("SavePayment", mock.Anything, mock.Anything).Return("payment-record", nil).Once()
		audit.On("SaveSubscriptionRecord", mock.Anything, mock.Anything).Return("sub-record", nil).Once()
		accounts.On("ApplyActivation", mock.Anything, mock.Anything, false).Return(1, nil).Once()
		cache.On("Invalidate", "account:user1").Return(nil).Once()
		pub.On("PublishActivation", mock.Anything).Return(nil).Once()

		got, err := svc.Activate(context.Background(), "user1", "user1@example.com", "pkg3", payment, now)
		require.NoError(t, err)
		assert.Equal(t, now.AddDate(1, 0, 0), got.ExpiryDate)
	})
}
