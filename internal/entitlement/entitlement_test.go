package entitlement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/magabrotheeeer/entitlement-reconciler/internal/models"
)

func TestEffective(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	yesterday := now.AddDate(0, 0, -1)
	nextMonth := now.AddDate(0, 1, 0)

	activePremium := &models.EntitlementRecord{
		OwnerEmail: "user@example.com",
		Premium:    true,
		Tier:       models.TierPremium,
		Status:     models.StatusActive,
	}

	tests := []struct {
		name       string
		role       string
		override   *models.AccessOverride
		rec        *models.EntitlementRecord
		wantTier   models.Tier
		wantReason string
	}{
		{
			name:       "роль admin даёт полный доступ без записи",
			role:       models.RoleAdmin,
			rec:        nil,
			wantTier:   models.TierPremium,
			wantReason: ReasonRole,
		},
		{
			name: "роль admin перекрывает просроченную запись",
			role: models.RoleAdmin,
			rec: &models.EntitlementRecord{
				Premium:        false,
				Tier:           models.TierFree,
				Status:         models.StatusExpired,
				ExpirationDate: &yesterday,
			},
			wantTier:   models.TierPremium,
			wantReason: ReasonRole,
		},
		{
			name:       "роль tester даёт полный доступ",
			role:       models.RoleTester,
			wantTier:   models.TierPremium,
			wantReason: ReasonRole,
		},
		{
			name:       "оверрайд full_unlock даёт полный доступ",
			role:       models.RoleUser,
			override:   &models.AccessOverride{FullUnlock: true},
			wantTier:   models.TierPremium,
			wantReason: ReasonFullUnlock,
		},
		{
			name:       "оверрайд simulate_tier игнорирует реальную запись",
			role:       models.RoleUser,
			override:   &models.AccessOverride{SimulateTier: "standard"},
			rec:        activePremium,
			wantTier:   models.TierStandard,
			wantReason: ReasonSimulated,
		},
		{
			name:       "активная premium подписка без срока",
			role:       models.RoleUser,
			rec:        activePremium,
			wantTier:   models.TierPremium,
			wantReason: ReasonSubscription,
		},
		{
			name: "активная подписка с будущим сроком",
			role: models.RoleUser,
			rec: &models.EntitlementRecord{
				Premium:        true,
				Tier:           models.TierStandard,
				Status:         models.StatusActive,
				ExpirationDate: &nextMonth,
			},
			wantTier:   models.TierStandard,
			wantReason: ReasonSubscription,
		},
		{
			name: "просроченная дата лишает доступа даже при premium и active",
			role: models.RoleUser,
			rec: &models.EntitlementRecord{
				Premium:        true,
				Tier:           models.TierPremium,
				Status:         models.StatusActive,
				ExpirationDate: &yesterday,
			},
			wantTier:   models.TierFree,
			wantReason: ReasonExpired,
		},
		{
			name: "статус canceled без срока не даёт доступа",
			role: models.RoleUser,
			rec: &models.EntitlementRecord{
				Premium: true,
				Tier:    models.TierPremium,
				Status:  models.StatusCanceled,
			},
			wantTier:   models.TierFree,
			wantReason: ReasonNone,
		},
		{
			name: "отменённая подписка с доступом до конца периода",
			role: models.RoleUser,
			rec: &models.EntitlementRecord{
				Premium:        true,
				Tier:           models.TierPremium,
				Status:         models.StatusCanceled,
				ExpirationDate: &nextMonth,
			},
			wantTier:   models.TierPremium,
			wantReason: ReasonSubscription,
		},
		{
			name: "отменённая подписка после конца периода лишается доступа",
			role: models.RoleUser,
			rec: &models.EntitlementRecord{
				Premium:        true,
				Tier:           models.TierPremium,
				Status:         models.StatusCanceled,
				ExpirationDate: &yesterday,
			},
			wantTier:   models.TierFree,
			wantReason: ReasonExpired,
		},
		{
			name:       "нет записи — только free",
			role:       models.RoleUser,
			rec:        nil,
			wantTier:   models.TierFree,
			wantReason: ReasonNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Effective(tt.role, tt.override, tt.rec, now)
			assert.Equal(t, tt.wantTier, got.Tier)
			assert.Equal(t, tt.wantReason, got.Reason)
		})
	}
}

func TestHasTier_OrdinalComparison(t *testing.T) {
	now := time.Now()
	rec := &models.EntitlementRecord{
		Premium: true,
		Tier:    models.TierPremium,
		Status:  models.StatusActive,
	}

	// premium покрывает standard и free
	assert.True(t, HasTier(models.RoleUser, nil, rec, models.TierStandard, now))
	assert.True(t, HasTier(models.RoleUser, nil, rec, models.TierFree, now))
	assert.True(t, HasTier(models.RoleUser, nil, rec, models.TierPremium, now))

	standard := &models.EntitlementRecord{
		Premium: true,
		Tier:    models.TierStandard,
		Status:  models.StatusActive,
	}
	assert.True(t, HasTier(models.RoleUser, nil, standard, models.TierStandard, now))
	assert.False(t, HasTier(models.RoleUser, nil, standard, models.TierPremium, now))

	// без записи доступен только free
	assert.True(t, HasTier(models.RoleUser, nil, nil, models.TierFree, now))
	assert.False(t, HasTier(models.RoleUser, nil, nil, models.TierStandard, now))
}

func TestParseTier(t *testing.T) {
	tier, ok := models.ParseTier("Premium")
	assert.True(t, ok)
	assert.Equal(t, models.TierPremium, tier)

	_, ok = models.ParseTier("platinum")
	assert.False(t, ok)
}
