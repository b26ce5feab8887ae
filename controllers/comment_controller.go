package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/folio/models"
	"github.com/cppla/folio/services"
	"github.com/cppla/folio/utils"
)

// CommentController handles comments on published posts.
type CommentController struct {
	db      *gorm.DB
	content *services.ContentService
}

// NewCommentController creates a new CommentController instance.
func NewCommentController(db *gorm.DB, content *services.ContentService) *CommentController {
	return &CommentController{db: db, content: content}
}

// ListComments returns a post's comments, oldest first.
func (c *CommentController) ListComments(ctx *gin.Context) {
	post, ok := c.publishedPost(ctx)
	if !ok {
		return
	}
	page, pageSize := parsePagination(ctx.Query("page"), ctx.Query("page_size"))

	var total int64
	var comments []models.Comment
	q := c.db.Model(&models.Comment{}).Where("post_id = ?", post.ID)
	if err := q.Count(&total).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to count comments")
		return
	}
	if err := q.Preload("User").Order("created_at ASC").
		Offset((page - 1) * pageSize).Limit(pageSize).Find(&comments).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50041, "failed to list comments")
		return
	}
	utils.Success(ctx, gin.H{"items": comments, "pagination": pagination(page, pageSize, total)})
}

// CreateComment sanitizes and stores a comment.
func (c *CommentController) CreateComment(ctx *gin.Context) {
	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40022, "invalid request payload")
		return
	}

	content, err := c.content.CleanComment(req.Content)
	if err != nil {
		respondSanitizeError(ctx, err)
		return
	}

	post, ok := c.publishedPost(ctx)
	if !ok {
		return
	}
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}

	comment := models.Comment{PostID: post.ID, UserID: userID, Content: content}
	if err := c.db.Create(&comment).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50042, "failed to create comment")
		return
	}
	if err := c.db.Preload("User").First(&comment, comment.ID).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50043, "failed to load comment")
		return
	}
	utils.Created(ctx, gin.H{"comment": comment})
}

// DeleteComment allows the comment owner or an admin to delete a comment.
func (c *CommentController) DeleteComment(ctx *gin.Context) {
	var cmt models.Comment
	if err := c.db.First(&cmt, ctx.Param("commentId")).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Error(ctx, http.StatusNotFound, 40420, "comment not found")
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50070, "failed to load comment")
		return
	}

	uid, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40120, "unauthorized")
		return
	}
	if cmt.UserID != uid && !isAdmin(ctx) {
		utils.Error(ctx, http.StatusForbidden, 40320, "you can only delete your own comment")
		return
	}
	if err := c.db.Delete(&cmt).Error; err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50071, "failed to delete comment")
		return
	}
	utils.Success(ctx, gin.H{"message": "comment deleted"})
}

func (c *CommentController) publishedPost(ctx *gin.Context) (models.Post, bool) {
	var post models.Post
	err := c.db.Where("slug = ? AND published = ?", ctx.Param("slug"), true).First(&post).Error
	if err == nil {
		return post, true
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		utils.Error(ctx, http.StatusNotFound, 40402, "post not found")
	} else {
		utils.Error(ctx, http.StatusInternalServerError, 50024, "failed to load post")
	}
	return post, false
}
