package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/entitlement-reconciler/internal/models"
)

func TestStorage_UpsertAndGetEntitlement(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	ctx := context.Background()
	rec := GetTestEntitlement()

	err := storage.UpsertEntitlement(ctx, rec)
	require.NoError(t, err)

	// Email при чтении нормализуется, регистр запроса не важен
	got, err := storage.GetEntitlement(ctx, "Test@Example.COM")
	require.NoError(t, err)

	assert.Equal(t, "test@example.com", got.OwnerEmail)
	assert.True(t, got.Premium)
	assert.Equal(t, models.TierPremium, got.Tier)
	assert.Equal(t, models.StatusActive, got.Status)
	assert.Equal(t, "sub_test_123", got.PaymentSubscriptionID)
	assert.Equal(t, "cus_test_123", got.PaymentCustomerID)
	require.NotNil(t, got.ExpirationDate)
	assert.WithinDuration(t, *rec.ExpirationDate, *got.ExpirationDate, time.Second)
	assert.Nil(t, got.WarnedForExpiration)
	assert.False(t, got.CreatedAt.IsZero())
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestStorage_GetEntitlement_NotFound(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	_, err := storage.GetEntitlement(context.Background(), "missing@example.com")
	require.ErrorIs(t, err, ErrEntitlementNotFound)
}

func TestStorage_UpsertEntitlement_OverwritesExisting(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	ctx := context.Background()
	rec := GetTestEntitlement()
	require.NoError(t, storage.UpsertEntitlement(ctx, rec))

	// Повторная запись по тому же ключу задает полное новое состояние
	rec.Premium = false
	rec.Tier = models.TierFree
	rec.Status = models.StatusExpired
	rec.ExpirationDate = nil
	rec.PaymentSubscriptionID = ""
	rec.PaymentCustomerID = ""
	require.NoError(t, storage.UpsertEntitlement(ctx, rec))

	got, err := storage.GetEntitlement(ctx, rec.OwnerEmail)
	require.NoError(t, err)
	assert.False(t, got.Premium)
	assert.Equal(t, models.TierFree, got.Tier)
	assert.Equal(t, models.StatusExpired, got.Status)
	assert.Nil(t, got.ExpirationDate)
	assert.Empty(t, got.PaymentSubscriptionID)
	assert.Empty(t, got.PaymentCustomerID)

	verification := NewTestVerification(storage)
	verification.VerifyEntitlementExists(t, rec.OwnerEmail)
	verification.VerifyEntitlementStatus(t, rec.OwnerEmail, models.TierFree, models.StatusExpired)
}

func TestStorage_ListActivePremium(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	ctx := context.Background()
	factory := NewTestDataFactory(storage)
	expiry := time.Now().AddDate(0, 1, 0)

	factory.CreateEntitlement(t, "bob@example.com", true, models.TierPremium, models.StatusActive, &expiry, "sub_1")
	factory.CreateEntitlement(t, "alice@example.com", true, models.TierStandard, models.StatusActive, nil, "sub_2")
	factory.CreateEntitlement(t, "carol@example.com", false, models.TierFree, models.StatusActive, nil, "")
	factory.CreateEntitlement(t, "dave@example.com", true, models.TierPremium, models.StatusCanceled, &expiry, "sub_3")

	result, err := storage.ListActivePremium(ctx)
	require.NoError(t, err)

	// Только active+premium, отсортированы по email
	require.Len(t, result, 2)
	assert.Equal(t, "alice@example.com", result[0].OwnerEmail)
	assert.Equal(t, "bob@example.com", result[1].OwnerEmail)
	assert.Nil(t, result[0].ExpirationDate)
	require.NotNil(t, result[1].ExpirationDate)
}

func TestStorage_MarkWarned(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	ctx := context.Background()
	rec := GetTestEntitlement()
	require.NoError(t, storage.UpsertEntitlement(ctx, rec))

	err := storage.MarkWarned(ctx, "Test@Example.com", *rec.ExpirationDate)
	require.NoError(t, err)

	got, err := storage.GetEntitlement(ctx, rec.OwnerEmail)
	require.NoError(t, err)
	require.NotNil(t, got.WarnedForExpiration)
	assert.WithinDuration(t, *rec.ExpirationDate, *got.WarnedForExpiration, time.Second)
}

func TestStorage_AuditLog(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	ctx := context.Background()
	entries := []models.AuditEntry{
		{AdminActor: "admin@example.com", ActionType: models.AuditActionRoleChange,
			Details: `role changed from "user" to "tester"`, TargetEmail: "User@Example.com"},
		{AdminActor: "admin@example.com", ActionType: models.AuditActionManualSubscription,
			Details: "manual premium granted", TargetEmail: "user@example.com"},
		{AdminActor: "system", ActionType: models.AuditActionWebhookFailure,
			Details: "entitlement write failed after retries", TargetEmail: "other@example.com"},
	}
	var ids []int
	for _, entry := range entries {
		id, err := storage.CreateAuditEntry(ctx, entry)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	assert.Greater(t, ids[1], ids[0])
	assert.Greater(t, ids[2], ids[1])

	// Новые записи первыми, пагинация по limit/offset
	page, err := storage.ListAuditEntries(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[2], page[0].ID)
	assert.Equal(t, ids[1], page[1].ID)
	assert.Equal(t, models.AuditActionManualSubscription, page[1].ActionType)
	assert.False(t, page[0].CreatedAt.IsZero())

	rest, err := storage.ListAuditEntries(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, ids[0], rest[0].ID)
	// Email цели приводится к нижнему регистру при записи
	assert.Equal(t, "user@example.com", rest[0].TargetEmail)

	verification := NewTestVerification(storage)
	verification.VerifyAuditEntryCount(t, "user@example.com", 2)
}

func TestStorage_DiscountCodes(t *testing.T) {
	storage, cleanup := setupTestDatabase(t)
	defer cleanup()

	ctx := context.Background()
	expiresAt := time.Now().AddDate(0, 0, 30)
	code := models.DiscountCode{
		Code:       "SUMMER25",
		Percent:    25,
		ExpiresAt:  &expiresAt,
		UsageLimit: 100,
		Active:     true,
	}

	require.NoError(t, storage.CreateDiscountCode(ctx, code))

	// Поиск без учета регистра
	got, err := storage.GetDiscountCode(ctx, "summer25")
	require.NoError(t, err)
	assert.Equal(t, "SUMMER25", got.Code)
	assert.Equal(t, 25, got.Percent)
	assert.Equal(t, 100, got.UsageLimit)
	assert.Equal(t, 0, got.UsageCount)
	assert.True(t, got.Active)
	require.NotNil(t, got.ExpiresAt)
	assert.WithinDuration(t, expiresAt, *got.ExpiresAt, time.Second)

	err = storage.CreateDiscountCode(ctx, code)
	require.ErrorIs(t, err, ErrDiscountCodeExists)

	_, err = storage.GetDiscountCode(ctx, "UNKNOWN")
	require.ErrorIs(t, err, ErrDiscountCodeNotFound)
}
