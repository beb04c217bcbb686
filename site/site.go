// Package site serves the public cta-manager/v1 surface: the CTA list the
// block editor uses for selection. No auth; only published, enabled,
// non-demo records are exposed, with a short-lived response cache in front.
package site

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ctamanager/cache"
	"ctamanager/cta"
	"ctamanager/models"
)

type SiteModule struct {
	ctas  *cta.Repository
	store *cache.Store
}

func NewSiteModule(ctas *cta.Repository, store *cache.Store) *SiteModule {
	return &SiteModule{ctas: ctas, store: store}
}

func (s *SiteModule) RegisterRoutes(router *gin.Engine) {
	group := router.Group("/cta-manager/v1")
	{
		group.GET("/ctas", s.listCTAs)
	}
}

// publicCTA is the trimmed shape exposed without auth: identity and
// presentation only, no scheduling internals.
type publicCTA struct {
	ID     uint                   `json:"id"`
	Name   string                 `json:"name"`
	Type   string                 `json:"type"`
	Layout string                 `json:"layout"`
	Style  map[string]interface{} `json:"style"`
}

func (s *SiteModule) listCTAs(c *gin.Context) {
	cacheKey := cache.Key("public_ctas")
	if cached, found := s.store.Get(cacheKey); found {
		if views, ok := cached.([]publicCTA); ok {
			c.Header("X-Cache", "HIT")
			c.JSON(http.StatusOK, gin.H{"data": views})
			return
		}
	}

	enabled := true
	records := s.ctas.GetAll(cta.Filters{
		Status:      models.StatusPublish,
		Enabled:     &enabled,
		ExcludeDemo: true,
		OrderBy:     "name",
	})

	views := make([]publicCTA, 0, len(records))
	for _, record := range records {
		views = append(views, publicCTA{
			ID:     record.ID,
			Name:   record.Name,
			Type:   record.Type,
			Layout: record.Layout,
			Style:  models.StyleFromJSON(record.StyleJSON),
		})
	}

	s.store.Set(cacheKey, views)
	c.Header("X-Cache", "MISS")
	c.JSON(http.StatusOK, gin.H{"data": views})
}
