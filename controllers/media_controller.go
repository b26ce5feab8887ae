package controllers

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cppla/folio/config"
	"github.com/cppla/folio/models"
	"github.com/cppla/folio/utils"
)

// imageExtensions maps sniffed content types to stored file extensions.
var imageExtensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// MediaController stores uploaded images for use in post bodies.
type MediaController struct {
	db  *gorm.DB
	cfg config.MediaSection
}

// NewMediaController creates a new MediaController instance.
func NewMediaController(db *gorm.DB, cfg config.MediaSection) *MediaController {
	return &MediaController{db: db, cfg: cfg}
}

// Upload saves one image from the "file" form field and returns its public URL.
// The type is sniffed from content; the client filename is ignored.
func (m *MediaController) Upload(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40113, "unauthorized")
		return
	}

	maxSize := int64(m.cfg.MaxUploadMB) << 20
	file, header, err := ctx.Request.FormFile("file")
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "no file uploaded")
		return
	}
	defer file.Close()
	if header.Size > maxSize {
		utils.Error(ctx, http.StatusRequestEntityTooLarge, 41330, fmt.Sprintf("file size exceeds %dMB", m.cfg.MaxUploadMB))
		return
	}

	br := bufio.NewReader(file)
	head, _ := br.Peek(512)
	contentType := http.DetectContentType(head)
	ext, ok := imageExtensions[contentType]
	if !ok {
		utils.Error(ctx, http.StatusUnsupportedMediaType, 41530, "only png, jpeg, gif and webp images are accepted")
		return
	}

	now := time.Now()
	datePath := path.Join(now.Format("2006"), now.Format("01"), now.Format("02"))
	dir := filepath.Join(m.cfg.Dir, filepath.FromSlash(datePath))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to create upload directory")
		return
	}
	name := uuid.NewString() + ext
	dst := filepath.Join(dir, name)

	written, err := writeLimited(dst, br, maxSize)
	if err != nil {
		_ = os.Remove(dst)
		if errors.Is(err, errTooLarge) {
			utils.Error(ctx, http.StatusRequestEntityTooLarge, 41330, fmt.Sprintf("file size exceeds %dMB", m.cfg.MaxUploadMB))
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50032, "failed to write file")
		return
	}

	media := models.Media{
		UserID:      userID,
		FilePath:    dst,
		URL:         strings.TrimRight(m.cfg.URLPrefix, "/") + "/" + path.Join(datePath, name),
		ContentType: contentType,
		Size:        written,
	}
	if err := m.db.Create(&media).Error; err != nil {
		_ = os.Remove(dst)
		utils.Error(ctx, http.StatusInternalServerError, 50033, "failed to record upload")
		return
	}
	utils.Created(ctx, gin.H{"media": media})
}

var errTooLarge = errors.New("upload too large")

func writeLimited(dst string, r io.Reader, maxSize int64) (int64, error) {
	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	written, err := io.Copy(out, io.LimitReader(r, maxSize+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return written, err
	}
	if written > maxSize {
		return written, errTooLarge
	}
	return written, nil
}
