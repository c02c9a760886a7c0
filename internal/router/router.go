package router

import (
	"schoolsite/internal/auth"
	"schoolsite/internal/handlers"
	"schoolsite/internal/middleware"
	"schoolsite/internal/services"
	"schoolsite/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps are the shared services the handlers are built from.
type Deps struct {
	DB           *gorm.DB
	Auth         *services.AuthService
	Registration *services.Registration
	Accounts     *services.AccountService
	RenderCache  *utils.TTLCache
	Log          *zap.Logger
}

// RegisterRoutes mounts the JSON API. The cookie session middleware must
// already be installed on r.
func RegisterRoutes(r *gin.Engine, d Deps) {
	authHandler := handlers.NewAuthHandler(d.Auth, d.Registration, d.Log)
	adminHandler := handlers.NewAdminHandler(d.Accounts, d.Log)
	userHandler := handlers.NewUserHandler(d.DB, d.Auth, d.Log)
	boardHandler := handlers.NewBoardHandler(d.DB, d.RenderCache, d.Log)
	announcementHandler := handlers.NewAnnouncementHandler(d.DB, d.Log)
	albumHandler := handlers.NewAlbumHandler(d.DB, d.Log)
	inquiryHandler := handlers.NewInquiryHandler(d.DB, d.Log)
	notificationHandler := handlers.NewNotificationHandler(d.DB, d.Log)

	api := r.Group("/api")
	api.Use(middleware.LoadUser(d.DB, d.Log))

	// 회원가입, 비밀번호 재설정, 로그인
	a := api.Group("/auth")
	{
		a.POST("/signup/send-code", authHandler.SendSignupCode)
		a.POST("/signup/verify-code", authHandler.VerifySignupCode)
		a.POST("/signup", authHandler.Signup)
		a.POST("/password/send-code", authHandler.SendResetCode)
		a.POST("/password/verify-code", authHandler.VerifyResetCode)
		a.POST("/password/reset", authHandler.ResetPassword)
		a.POST("/login", authHandler.Login)
		a.POST("/logout", authHandler.Logout)
		a.GET("/me", middleware.AuthRequired(), authHandler.Me)
	}

	users := api.Group("/users", middleware.AuthRequired())
	{
		users.PATCH("/me", userHandler.UpdateSettings)
		users.GET("/:id", userHandler.Profile)
	}

	admin := api.Group("/admin", middleware.Require(auth.IsAdmin))
	{
		admin.GET("/users", adminHandler.ListUsers)
		admin.PATCH("/users/:id", adminHandler.UpdateUser)
		admin.DELETE("/users/:id", adminHandler.DeleteUser)
	}

	// 자유게시판
	board := api.Group("/board")
	{
		board.GET("/posts", middleware.Require(auth.CanReadBoard), boardHandler.ListPosts)
		board.GET("/posts/:id", middleware.Require(auth.CanReadBoard), boardHandler.GetPost)

		write := board.Group("", middleware.Require(auth.CanWriteBoard))
		write.POST("/posts", boardHandler.CreatePost)
		write.PATCH("/posts/:id", boardHandler.UpdatePost)
		write.DELETE("/posts/:id", boardHandler.DeletePost)
		write.POST("/posts/:id/comments", boardHandler.CreateComment)
		write.POST("/posts/:id/reactions", boardHandler.ToggleReaction)

		board.DELETE("/comments/:id", middleware.AuthRequired(), boardHandler.DeleteComment)
	}

	// 공지사항
	api.GET("/announcements", announcementHandler.List)
	api.GET("/announcements/:id", announcementHandler.Get)
	announcements := api.Group("/announcements", middleware.Require(auth.CanManageAnnouncements))
	{
		announcements.POST("", announcementHandler.Create)
		announcements.PATCH("/:id", announcementHandler.Update)
		announcements.DELETE("/:id", announcementHandler.Delete)
	}

	// 앨범
	api.GET("/albums", albumHandler.List)
	albums := api.Group("/albums", middleware.Require(auth.CanManageAlbums))
	{
		albums.POST("", albumHandler.Create)
		albums.DELETE("/:id", albumHandler.Delete)
	}

	// 문의
	api.POST("/inquiries", inquiryHandler.Create)
	inquiries := api.Group("/inquiries", middleware.Require(auth.IsAdmin))
	{
		inquiries.GET("", inquiryHandler.List)
		inquiries.PATCH("/:id", inquiryHandler.Answer)
	}

	notifications := api.Group("/notifications", middleware.AuthRequired())
	{
		notifications.GET("", notificationHandler.List)
		notifications.POST("/read-all", notificationHandler.ReadAll)
		notifications.POST("/:id/read", notificationHandler.Read)
	}
}
