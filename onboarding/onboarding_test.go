package onboarding

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"ctamanager/common"
	"ctamanager/cta"
	"ctamanager/models"
	"ctamanager/settings"
)

func setupService(t *testing.T) (*Service, *cta.Repository) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatal("failed to connect database")
	}
	db.AutoMigrate(&models.CTA{}, &models.Setting{})

	gate := common.NewFeatureGate(false, 3)
	ctaRepo := cta.NewRepository(db)
	return NewService(settings.NewRepository(db, gate), ctaRepo), ctaRepo
}

func publishCTA(ctaRepo *cta.Repository) {
	ctaRepo.Create(&models.CTA{Name: "Live", Status: models.StatusPublish, Type: "link", Enabled: true})
}

func TestFreshInstallShowsChecklist(t *testing.T) {
	service, _ := setupService(t)

	state := service.GetState()
	assert.True(t, state.ShouldShow)
	assert.Empty(t, state.CompletedSteps)
	assert.False(t, state.Dismissed)
}

func TestStepsCompleteInAnyOrder(t *testing.T) {
	service, ctaRepo := setupService(t)
	publishCTA(ctaRepo)

	_, err := service.CompleteStep(3)
	assert.NoError(t, err)
	_, err = service.CompleteStep(1)
	assert.NoError(t, err)
	state, err := service.CompleteStep(3) // repeat is a no-op
	assert.NoError(t, err)

	assert.ElementsMatch(t, []int{1, 3}, state.CompletedSteps)
	assert.True(t, state.ShouldShow)
}

func TestCompletingAllStepsHidesChecklist(t *testing.T) {
	service, ctaRepo := setupService(t)
	publishCTA(ctaRepo)

	for step := 1; step <= 4; step++ {
		_, err := service.CompleteStep(step)
		assert.NoError(t, err)
	}

	assert.False(t, service.GetState().ShouldShow)
}

func TestStepOutOfRangeRejected(t *testing.T) {
	service, _ := setupService(t)

	_, err := service.CompleteStep(0)
	assert.Error(t, err)
	_, err = service.CompleteStep(5)
	assert.Error(t, err)
}

func TestDismissHidesChecklistWithActiveCTA(t *testing.T) {
	service, ctaRepo := setupService(t)
	publishCTA(ctaRepo)

	state, err := service.Dismiss()
	assert.NoError(t, err)
	assert.True(t, state.Dismissed)
	assert.False(t, state.ShouldShow)
}

func TestZeroActiveCTAsOverridesDismissal(t *testing.T) {
	service, ctaRepo := setupService(t)

	_, err := service.Dismiss()
	assert.NoError(t, err)

	// Nothing live on the site: the checklist comes back despite dismissal.
	state := service.GetState()
	assert.True(t, state.Dismissed)
	assert.True(t, state.ShouldShow)

	// Demo and draft rows do not count as live.
	ctaRepo.Create(&models.CTA{Name: "Demo", Status: models.StatusPublish, Type: "link", Enabled: true, IsDemo: true})
	ctaRepo.Create(&models.CTA{Name: "Draft", Status: models.StatusDraft, Type: "link", Enabled: true})
	assert.True(t, service.GetState().ShouldShow)

	publishCTA(ctaRepo)
	assert.False(t, service.GetState().ShouldShow)
}
