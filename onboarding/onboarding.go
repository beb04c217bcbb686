// Package onboarding tracks the four-step setup checklist. State lives in
// the "onboarding" settings group; the banner resurfaces whenever the site
// has no active CTAs, even after an explicit dismissal.
package onboarding

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"ctamanager/common"
	"ctamanager/cta"
	"ctamanager/settings"
)

const (
	settingsGroup = "onboarding"
	MinStep       = 1
	MaxStep       = 4
)

type Service struct {
	settings *settings.Repository
	ctas     *cta.Repository
}

func NewService(settingsRepo *settings.Repository, ctas *cta.Repository) *Service {
	return &Service{settings: settingsRepo, ctas: ctas}
}

// State is the persisted checklist state plus the computed visibility flag.
type State struct {
	CompletedSteps []int `json:"completed_steps"`
	Dismissed      bool  `json:"dismissed"`
	ShouldShow     bool  `json:"should_show"`
}

func (s *Service) load() (steps []int, dismissed bool) {
	group := s.settings.Get(settingsGroup)

	if raw, ok := group["completed_steps"].([]interface{}); ok {
		for _, item := range raw {
			if step, isNumber := item.(float64); isNumber {
				steps = append(steps, int(step))
			}
		}
	}
	dismissed, _ = group["dismissed"].(bool)
	return steps, dismissed
}

func (s *Service) save(steps []int, dismissed bool) error {
	untyped := make([]interface{}, 0, len(steps))
	for _, step := range steps {
		untyped = append(untyped, step)
	}
	return s.settings.Set(settingsGroup, map[string]interface{}{
		"completed_steps": untyped,
		"dismissed":       dismissed,
	})
}

// GetState returns the checklist state. ShouldShow is true while there is no
// active non-demo CTA, regardless of completion or dismissal: a site with
// nothing live always gets pointed back at setup.
func (s *Service) GetState() State {
	steps, dismissed := s.load()
	if steps == nil {
		steps = []int{}
	}

	show := !dismissed && len(steps) < MaxStep
	if s.ctas.CountActiveNonDemo() == 0 {
		show = true
	}

	return State{CompletedSteps: steps, Dismissed: dismissed, ShouldShow: show}
}

// CompleteStep records one step as done. Steps complete in any order and
// completing one twice is a no-op.
func (s *Service) CompleteStep(step int) (State, error) {
	if step < MinStep || step > MaxStep {
		return s.GetState(), errInvalidStep
	}

	steps, dismissed := s.load()
	seen := false
	for _, done := range steps {
		if done == step {
			seen = true
			break
		}
	}
	if !seen {
		steps = append(steps, step)
		if err := s.save(steps, dismissed); err != nil {
			return s.GetState(), err
		}
	}
	return s.GetState(), nil
}

// Dismiss hides the checklist. The zero-active-CTA override still applies.
func (s *Service) Dismiss() (State, error) {
	steps, _ := s.load()
	if err := s.save(steps, true); err != nil {
		return s.GetState(), err
	}
	return s.GetState(), nil
}

type stepError string

func (e stepError) Error() string { return string(e) }

const errInvalidStep = stepError("onboarding step out of range")

type OnboardingModule struct {
	service *Service
}

func NewOnboardingModule(service *Service) *OnboardingModule {
	return &OnboardingModule{service: service}
}

func (m *OnboardingModule) RegisterRoutes(router *gin.Engine) {
	group := router.Group("/admin/onboarding")
	group.Use(common.RequireAuthJSON)
	{
		group.GET("", m.getState)

		mutating := group.Group("")
		mutating.Use(common.RequireNonce)
		{
			mutating.POST("/step", m.completeStep)
			mutating.POST("/dismiss", m.dismiss)
		}
	}
}

func (m *OnboardingModule) getState(c *gin.Context) {
	c.JSON(http.StatusOK, m.service.GetState())
}

func (m *OnboardingModule) completeStep(c *gin.Context) {
	var body struct {
		Step int `json:"step"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	state, err := m.service.CompleteStep(body.Step)
	if err == errInvalidStep {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Step must be between 1 and 4"})
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("Error saving onboarding state")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save onboarding state"})
		return
	}
	c.JSON(http.StatusOK, state)
}

func (m *OnboardingModule) dismiss(c *gin.Context) {
	state, err := m.service.Dismiss()
	if err != nil {
		log.Error().Err(err).Msg("Error saving onboarding state")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save onboarding state"})
		return
	}
	c.JSON(http.StatusOK, state)
}
