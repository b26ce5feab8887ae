package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/folio/config"
	"github.com/cppla/folio/controllers"
	"github.com/cppla/folio/metrics"
	"github.com/cppla/folio/middleware"
	"github.com/cppla/folio/services"
	"github.com/cppla/folio/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(cfg config.AppConfig, db *gorm.DB, content *services.ContentService) *gin.Engine {
	switch strings.ToLower(cfg.App.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.RequestID())
	// access log goes to its own rolling file
	gl, err := utils.NewRollingFileLogger(cfg.App.GinPath, cfg.Log)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		utils.Sugar.Warnw("gin access log disabled", "path", cfg.App.GinPath, "err", err)
		r.Use(utils.RecoveryWithZap(utils.Logger, false))
	}
	r.Use(middleware.Metrics())

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.App.AllowedOrigins) == 1 && cfg.App.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.App.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.Static(cfg.Media.URLPrefix, cfg.Media.Dir)

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	authController := controllers.NewAuthController(db, content)
	postController := controllers.NewPostController(db, content)
	commentController := controllers.NewCommentController(db, content)
	sanitizeController := controllers.NewSanitizeController(content)
	settingsController := controllers.NewSettingsController(cfg.Site, content)
	mediaController := controllers.NewMediaController(db, cfg.Media)

	limiter := middleware.NewRateLimiter(cfg.App.RateLimitPerMinute)
	auth := middleware.AuthRequired()
	admin := []gin.HandlerFunc{auth, middleware.AdminRequired()}

	api := r.Group("/api/v1")

	registerSanitizeRoutes(api, sanitizeController, settingsController, auth)

	authGroup := api.Group("/auth")
	authGroup.POST("/register", limiter.Middleware(), authController.Register)
	authGroup.POST("/login", limiter.Middleware(), authController.Login)
	authGroup.GET("/oauth/:provider/login", limiter.Middleware(), authController.OAuthRedirect)
	authGroup.GET("/oauth/:provider/callback", limiter.Middleware(), authController.OAuthCallback)
	authGroup.POST("/logout", auth, authController.Logout)
	authGroup.GET("/me", auth, authController.Me)
	authGroup.PATCH("/profile", auth, authController.UpdateProfile)

	posts := api.Group("/posts")
	posts.GET("", postController.ListPosts)
	posts.GET("/:slug", postController.GetPost)
	posts.GET("/:slug/comments", commentController.ListComments)
	posts.POST("/:slug/comments", auth, limiter.Middleware(), commentController.CreateComment)
	posts.POST("", append(admin, postController.CreatePost)...)
	posts.PUT("/:id", append(admin, postController.UpdatePost)...)
	posts.DELETE("/:id", append(admin, postController.DeletePost)...)

	api.DELETE("/comments/:commentId", auth, commentController.DeleteComment)
	api.POST("/media", append(admin, mediaController.Upload)...)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r
}

// registerSanitizeRoutes mounts the endpoints that need no database.
func registerSanitizeRoutes(api *gin.RouterGroup, s *controllers.SanitizeController, settings *controllers.SettingsController, auth gin.HandlerFunc) {
	api.POST("/sanitize/preview", auth, s.Preview)
	api.GET("/sanitize/policy", s.Policy)
	api.GET("/embeds", s.ResolveEmbed)
	api.GET("/settings", settings.GetSettings)
}
