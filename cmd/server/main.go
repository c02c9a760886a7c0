package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"schoolsite/internal/config"
	"schoolsite/internal/db"
	"schoolsite/internal/logger"
	"schoolsite/internal/router"
	"schoolsite/internal/services"
	"schoolsite/internal/utils"

	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	zlog, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatal(err)
	}
	defer zlog.Sync()

	conn, err := db.Open(cfg, zlog)
	if err != nil {
		zlog.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := services.SeedAdmin(context.Background(), conn, cfg.Admin, zlog); err != nil {
		zlog.Fatal("Failed to seed admin", zap.Error(err))
	}

	store := codeStore(cfg, zlog)
	mailer := services.NewMailService(cfg.SMTP, cfg.SiteName, cfg.Verification.CodeTTL, zlog)
	users := services.NewGormUserStore(conn)
	keys := services.NewTempKeyIssuer(cfg.Verification.TempKeySecret, cfg.Verification.TempKeyTTL, time.Now)

	r := gin.New()
	r.Use(gin.Recovery(), logger.GinLogger(zlog), gzip.Gzip(gzip.DefaultCompression))

	// Setup Sessions
	sessionStore := cookie.NewStore([]byte(cfg.SessionSecret))
	sessionStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   7 * 24 * 3600,
		HttpOnly: true,
		Secure:   gin.Mode() == gin.ReleaseMode,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("school_session", sessionStore))

	router.RegisterRoutes(r, router.Deps{
		DB:           conn,
		Auth:         services.NewAuthService(users, zlog),
		Registration: services.NewRegistration(users, store, keys, mailer, cfg.Verification, zlog),
		Accounts:     services.NewAccountService(conn, mailer, cfg.Verification.DeliveryTimeout, zlog),
		RenderCache:  utils.NewTTLCache(1000),
		Log:          zlog,
	})

	zlog.Info("School site server starting", zap.String("port", cfg.Port), zap.String("site", cfg.SiteName))
	if err := r.Run(":" + cfg.Port); err != nil {
		zlog.Fatal("Server stopped", zap.Error(err))
	}
}

// codeStore uses Redis when configured so codes survive restarts and are
// shared between instances, and falls back to the in-process LRU.
func codeStore(cfg *config.Config, log *zap.Logger) services.CodeStore {
	if cfg.Redis.Addr == "" {
		log.Warn("REDIS_ADDR not set, verification codes are kept in memory")
		return services.NewMemoryStore(10000)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client, err := services.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatal("Failed to connect to redis", zap.Error(err))
	}
	log.Info("Redis connection established", zap.String("addr", cfg.Redis.Addr))
	return services.NewRedisStore(client)
}
