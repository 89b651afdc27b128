package sweeper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/entitlement-reconciler/internal/models"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) ListActivePremium(ctx context.Context) ([]*models.EntitlementRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.EntitlementRecord), args.Error(1)
}

func (m *RepoMock) UpsertEntitlement(ctx context.Context, rec *models.EntitlementRecord) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *RepoMock) MarkWarned(ctx context.Context, ownerEmail string, expiration time.Time) error {
	return m.Called(ctx, ownerEmail, expiration).Error(0)
}

type NotifierMock struct{ mock.Mock }

func (m *NotifierMock) Publish(routingKey string, message any) error {
	return m.Called(routingKey, message).Error(0)
}

func newService(repo *RepoMock, notifier *NotifierMock, now time.Time) *Service {
	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	svc := New(repo, notifier, log)
	svc.now = func() time.Time { return now }
	return svc
}

func record(email string, expiration *time.Time) *models.EntitlementRecord {
	return &models.EntitlementRecord{
		OwnerEmail:     email,
		Premium:        true,
		Tier:           models.TierPremium,
		Status:         models.StatusActive,
		ExpirationDate: expiration,
	}
}

func TestSweep_SkipsRecordsWithoutExpiration(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	repo := new(RepoMock)
	notifier := new(NotifierMock)
	repo.On("ListActivePremium", mock.Anything).
		Return([]*models.EntitlementRecord{record("recurring@example.com", nil)}, nil).Once()

	svc := newService(repo, notifier, now)
	result, err := svc.Sweep(context.Background())

	require.NoError(t, err)
	require.Equal(t, Result{}, result)
	repo.AssertNotCalled(t, "UpsertEntitlement", mock.Anything, mock.Anything)
	notifier.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestSweep_ExpiresPastDateRecords(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)

	repo := new(RepoMock)
	notifier := new(NotifierMock)
	repo.On("ListActivePremium", mock.Anything).
		Return([]*models.EntitlementRecord{record("expired@example.com", &past)}, nil).Once()
	repo.On("UpsertEntitlement", mock.Anything, mock.MatchedBy(func(rec *models.EntitlementRecord) bool {
		return !rec.Premium &&
			rec.Tier == models.TierFree &&
			rec.Status == models.StatusExpired
	})).Return(nil).Once()
	notifier.On("Publish", "expired", mock.MatchedBy(func(msg any) bool {
		notice, ok := msg.(models.ExpiryNotice)
		// Письмо несет исходный tier, а не уже сброшенный free
		return ok && notice.Email == "expired@example.com" && notice.Tier == models.TierPremium
	})).Return(nil).Once()

	svc := newService(repo, notifier, now)
	result, err := svc.Sweep(context.Background())

	require.NoError(t, err)
	require.Equal(t, Result{Expired: 1, Warned: 0}, result)
	repo.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestSweep_WarnsExactlyOneDayBefore(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tomorrow := now.Add(20 * time.Hour)
	inThreeDays := now.AddDate(0, 0, 3)

	repo := new(RepoMock)
	notifier := new(NotifierMock)
	repo.On("ListActivePremium", mock.Anything).
		Return([]*models.EntitlementRecord{
			record("soon@example.com", &tomorrow),
			record("later@example.com", &inThreeDays),
		}, nil).Once()
	notifier.On("Publish", "expiring", mock.MatchedBy(func(msg any) bool {
		warning, ok := msg.(models.ExpiryWarning)
		return ok && warning.Email == "soon@example.com"
	})).Return(nil).Once()
	repo.On("MarkWarned", mock.Anything, "soon@example.com", tomorrow).Return(nil).Once()

	svc := newService(repo, notifier, now)
	result, err := svc.Sweep(context.Background())

	require.NoError(t, err)
	require.Equal(t, Result{Expired: 0, Warned: 1}, result)
	repo.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestSweep_DoesNotWarnTwiceForSameExpiration(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tomorrow := now.Add(20 * time.Hour)

	rec := record("soon@example.com", &tomorrow)
	rec.WarnedForExpiration = &tomorrow

	repo := new(RepoMock)
	notifier := new(NotifierMock)
	repo.On("ListActivePremium", mock.Anything).
		Return([]*models.EntitlementRecord{rec}, nil).Once()

	svc := newService(repo, notifier, now)
	result, err := svc.Sweep(context.Background())

	require.NoError(t, err)
	require.Equal(t, Result{}, result)
	notifier.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestSweep_WarnsAgainAfterExpirationMoved(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tomorrow := now.Add(20 * time.Hour)
	oldExpiration := now.AddDate(0, 0, -30)

	// Срок продлевался после прошлого предупреждения
	rec := record("renewed@example.com", &tomorrow)
	rec.WarnedForExpiration = &oldExpiration

	repo := new(RepoMock)
	notifier := new(NotifierMock)
	repo.On("ListActivePremium", mock.Anything).
		Return([]*models.EntitlementRecord{rec}, nil).Once()
	notifier.On("Publish", "expiring", mock.Anything).Return(nil).Once()
	repo.On("MarkWarned", mock.Anything, "renewed@example.com", tomorrow).Return(nil).Once()

	svc := newService(repo, notifier, now)
	result, err := svc.Sweep(context.Background())

	require.NoError(t, err)
	require.Equal(t, Result{Expired: 0, Warned: 1}, result)
	repo.AssertExpectations(t)
}

func TestSweep_ContinuesAfterWriteFailure(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)

	repo := new(RepoMock)
	notifier := new(NotifierMock)
	repo.On("ListActivePremium", mock.Anything).
		Return([]*models.EntitlementRecord{
			record("broken@example.com", &past),
			record("ok@example.com", &past),
		}, nil).Once()
	repo.On("UpsertEntitlement", mock.Anything, mock.MatchedBy(func(rec *models.EntitlementRecord) bool {
		return rec.OwnerEmail == "broken@example.com"
	})).Return(errors.New("db down")).Once()
	repo.On("UpsertEntitlement", mock.Anything, mock.MatchedBy(func(rec *models.EntitlementRecord) bool {
		return rec.OwnerEmail == "ok@example.com"
	})).Return(nil).Once()
	notifier.On("Publish", "expired", mock.Anything).Return(nil).Once()

	svc := newService(repo, notifier, now)
	result, err := svc.Sweep(context.Background())

	// Ошибка по одной записи не прерывает проход
	require.NoError(t, err)
	require.Equal(t, Result{Expired: 1, Warned: 0}, result)
	repo.AssertExpectations(t)
}

func TestSweep_ListFailureReturnsError(t *testing.T) {
	repo := new(RepoMock)
	notifier := new(NotifierMock)
	repo.On("ListActivePremium", mock.Anything).Return(nil, errors.New("db down")).Once()

	svc := newService(repo, notifier, time.Now())
	_, err := svc.Sweep(context.Background())

	require.Error(t, err)
}
