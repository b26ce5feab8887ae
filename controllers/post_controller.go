package controllers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/folio/config"
	"github.com/cppla/folio/middleware"
	"github.com/cppla/folio/models"
	"github.com/cppla/folio/sanitizer"
	"github.com/cppla/folio/services"
	"github.com/cppla/folio/utils"
)

// PostController manages CRUD operations for posts.
type PostController struct {
	db      *gorm.DB
	content *services.ContentService
}

// NewPostController creates a new PostController instance.
func NewPostController(db *gorm.DB, content *services.ContentService) *PostController {
	return &PostController{db: db, content: content}
}

type postRequest struct {
	Title     string `json:"title" binding:"required,min=1,max=255"`
	Body      string `json:"body" binding:"required"`
	Slug      string `json:"slug"`
	Published *bool  `json:"published"`
}

// ListPosts returns published posts, newest first. search matches title and body.
func (p *PostController) ListPosts(ctx *gin.Context) {
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))
	search := strings.TrimSpace(ctx.Query("search"))

	var posts []models.Post
	var total int64

	query := p.db.Model(&models.Post{}).Where("published = ?", true)
	if search != "" {
		like := likePattern(search)
		query = query.Where("title LIKE ? ESCAPE '!' OR body LIKE ? ESCAPE '!'", like, like)
	}
	if err := query.Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50021, "failed to count posts")
		return
	}
	if err := query.Preload("User").Order("created_at DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).Find(&posts).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50022, "failed to list posts")
		return
	}

	utils.Success(ctx, gin.H{
		"items":      posts,
		"pagination": pagination(page, pageSize, total),
	})
}

// GetPost returns a single post with its sanitized HTML.
func (p *PostController) GetPost(ctx *gin.Context) {
	var post models.Post
	if err := p.db.Preload("User").Where("slug = ?", ctx.Param("slug")).First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40401, "post not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to load post")
		return
	}
	if !post.Published && !isAdmin(ctx) {
		utils.Error(ctx, http.StatusNotFound, 40401, "post not found")
		return
	}

	html, err := p.content.RenderPost(ctx.Request.Context(), post)
	if err != nil {
		respondSanitizeError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"post": post, "html": html})
}

// CreatePost stores a new post. The slug defaults to one derived from the title.
func (p *PostController) CreatePost(ctx *gin.Context) {
	var req postRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40020, "invalid request payload")
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		utils.Error(ctx, http.StatusBadRequest, 40021, "title cannot be empty")
		return
	}
	if _, err := p.content.RenderMarkdown(req.Body); err != nil {
		respondSanitizeError(ctx, err)
		return
	}

	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	slug, err := p.uniqueSlug(firstNonEmpty(req.Slug, title), 0)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to allocate slug")
		return
	}

	post := models.Post{
		UserID:    userID,
		Title:     title,
		Slug:      slug,
		Body:      req.Body,
		Published: req.Published == nil || *req.Published,
	}
	if err := p.db.Create(&post).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50024, "failed to create post")
		return
	}
	utils.Created(ctx, gin.H{"post": post})
}

// UpdatePost replaces title, body and visibility, and drops cached renderings.
func (p *PostController) UpdatePost(ctx *gin.Context) {
	var req postRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40024, "invalid request payload")
		return
	}
	post, ok := p.loadByID(ctx)
	if !ok {
		return
	}
	if _, err := p.content.RenderMarkdown(req.Body); err != nil {
		respondSanitizeError(ctx, err)
		return
	}

	post.Title = strings.TrimSpace(req.Title)
	post.Body = req.Body
	if req.Published != nil {
		post.Published = *req.Published
	}
	if s := strings.TrimSpace(req.Slug); s != "" && utils.Slugify(s) != post.Slug {
		slug, err := p.uniqueSlug(s, post.ID)
		if err != nil {
			utils.Error(ctx, http.StatusInternalServerError, 50020, "failed to allocate slug")
			return
		}
		post.Slug = slug
	}

	if err := p.db.Save(&post).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50025, "failed to update post")
		return
	}
	p.content.InvalidatePost(ctx.Request.Context(), post.ID)
	utils.Success(ctx, gin.H{"post": post})
}

// DeletePost removes a post and its comments.
func (p *PostController) DeletePost(ctx *gin.Context) {
	post, ok := p.loadByID(ctx)
	if !ok {
		return
	}
	err := p.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&post).Error
	})
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50026, "failed to delete post")
		return
	}
	p.content.InvalidatePost(ctx.Request.Context(), post.ID)
	utils.Success(ctx, gin.H{"message": "post deleted"})
}

func (p *PostController) loadByID(ctx *gin.Context) (models.Post, bool) {
	var post models.Post
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40025, "invalid post id")
		return post, false
	}
	if err := p.db.First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40401, "post not found")
			return post, false
		}
		utils.Error(ctx, http.StatusInternalServerError, 50023, "failed to load post")
		return post, false
	}
	return post, true
}

// uniqueSlug slugifies base and appends -2, -3, ... until no other post uses it.
func (p *PostController) uniqueSlug(base string, selfID uint) (string, error) {
	root := utils.Slugify(base)
	slug := root
	for i := 2; i < 1000; i++ {
		var count int64
		q := p.db.Model(&models.Post{}).Where("slug = ?", slug)
		if selfID != 0 {
			q = q.Where("id <> ?", selfID)
		}
		if err := q.Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", root, i)
	}
	return "", fmt.Errorf("no free slug for %q", root)
}

// respondSanitizeError maps sanitizer errors onto the envelope codes.
func respondSanitizeError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, sanitizer.ErrInputTooLarge):
		utils.Error(ctx, http.StatusRequestEntityTooLarge, 41301, "content too large")
	case errors.Is(err, services.ErrEmptyContent):
		utils.Error(ctx, http.StatusBadRequest, 40023, "content cannot be empty")
	default:
		utils.Sugar.Errorw("sanitize failed", "err", err)
		utils.Error(ctx, http.StatusInternalServerError, 50027, "failed to render content")
	}
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// likePattern wraps search for a substring LIKE match with '!' as the escape
// character, so user-typed % and _ match literally.
func likePattern(search string) string {
	return "%" + likeEscaper.Replace(search) + "%"
}

func pagination(page, pageSize int, total int64) gin.H {
	return gin.H{
		"page":        page,
		"page_size":   pageSize,
		"total":       total,
		"total_pages": int((total + int64(pageSize) - 1) / int64(pageSize)),
	}
}

func parsePagination(pageStr, sizeStr string) (int, int) {
	page := 1
	pageSize := 10
	if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
		page = p
	}
	if s, err := strconv.Atoi(sizeStr); err == nil && s > 0 && s <= 100 {
		pageSize = s
	}
	return page, pageSize
}

func getUserID(ctx *gin.Context) (uint, bool) {
	id := middleware.CurrentUserID(ctx)
	return id, id != 0
}

func isAdmin(ctx *gin.Context) bool {
	uname := ctx.GetString(middleware.ContextUsernameKey)
	return uname != "" && config.Get().IsAdmin(uname)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
