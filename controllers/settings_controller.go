package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/folio/config"
	"github.com/cppla/folio/services"
	"github.com/cppla/folio/utils"
)

// SettingsController serves public, config-driven UI settings.
type SettingsController struct {
	site    config.SiteSection
	content *services.ContentService
}

// NewSettingsController creates a new SettingsController instance.
func NewSettingsController(site config.SiteSection, content *services.ContentService) *SettingsController {
	return &SettingsController{site: site, content: content}
}

// GetSettings returns the site title and the rendered notice.
func (s *SettingsController) GetSettings(ctx *gin.Context) {
	notice, err := s.content.RenderNotice()
	if err != nil {
		utils.Sugar.Warnw("render notice failed", "err", err)
		utils.Error(ctx, http.StatusInternalServerError, 50090, "failed to render notice")
		return
	}
	utils.Success(ctx, gin.H{
		"title": s.site.Title,
		"notice": gin.H{
			"title": s.site.NoticeTitle,
			"html":  notice,
		},
	})
}
