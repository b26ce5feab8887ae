package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/folio/sanitizer"
	"github.com/cppla/folio/services"
	"github.com/cppla/folio/utils"
)

// SanitizeController exposes the sanitizer to the editor: preview rendering,
// the policy document for client-side checks, and toolbar embed resolution.
type SanitizeController struct {
	content *services.ContentService
}

// NewSanitizeController creates a new SanitizeController instance.
func NewSanitizeController(content *services.ContentService) *SanitizeController {
	return &SanitizeController{content: content}
}

// Preview renders Markdown exactly as the editor preview displays it.
func (s *SanitizeController) Preview(ctx *gin.Context) {
	var req struct {
		Markdown string `json:"markdown"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40080, "invalid request payload")
		return
	}
	html, err := s.content.Preview(req.Markdown)
	if err != nil {
		respondSanitizeError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"html": html})
}

// Policy returns the inline and rich policies in effect.
func (s *SanitizeController) Policy(ctx *gin.Context) {
	san := s.content.Sanitizer()
	utils.Success(ctx, gin.H{
		"inline": san.InlinePolicy().Document(),
		"rich":   san.RichPolicy().Document(),
	})
}

// ResolveEmbed turns a pasted media URL into iframe markup.
func (s *SanitizeController) ResolveEmbed(ctx *gin.Context) {
	raw := strings.TrimSpace(ctx.Query("url"))
	if raw == "" {
		utils.Error(ctx, http.StatusBadRequest, 40081, "missing url")
		return
	}
	embed, err := s.content.Sanitizer().RichPolicy().ResolveEmbed(raw)
	switch {
	case err == nil:
		utils.Success(ctx, embed)
	case errors.Is(err, sanitizer.ErrUnsupportedEmbed):
		utils.Error(ctx, http.StatusUnprocessableEntity, 42201, "unsupported embed url")
	case errors.Is(err, sanitizer.ErrEmbedNotAllowed):
		utils.Error(ctx, http.StatusForbidden, 40380, "embed origin not allowed")
	default:
		utils.Error(ctx, http.StatusInternalServerError, 50080, "failed to resolve embed")
	}
}
