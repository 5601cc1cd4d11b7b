// Package app wires the router, middleware chain and handlers together
package app

import (
	"fmt"
	"time"

	"skygen/waitlist-api/app/root"
	wl "skygen/waitlist-api/app/waitlist"
	"skygen/waitlist-api/db"
	"skygen/waitlist-api/internal"
	"skygen/waitlist-api/internal/service"
	"skygen/waitlist-api/internal/waitlist"
	"skygen/waitlist-api/pkg/middleware"

	cache "github.com/chenyahui/gin-cache"
	"github.com/chenyahui/gin-cache/persist"
	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	gray  = "\x1b[90m"
	reset = "\x1b[0m"
)

var store = persist.NewMemoryStore(time.Minute)

func NewRouter() (*gin.Engine, error) {
	makeLogger()

	d := &internal.Deps{}

	conn, err := db.New()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database, %w", err)
	}

	d.DB = conn
	d.Waitlist = waitlist.NewService(conn)
	d.Mailer = service.NewMailer()

	router := gin.New()

	router.Use(
		cors.New(cors.Config{
			AllowOrigins:     viper.GetStringSlice("host.cors_origins"),
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
		gin.Recovery(),
		middleware.NewRequestIDMiddleware(),
		ginzap.GinzapWithConfig(zap.L(), &ginzap.Config{
			TimeFormat: "15:04:05.000",
			UTC:        true,
			Context: func(c *gin.Context) []zapcore.Field {
				fields := []zapcore.Field{}

				if v := c.GetString("requestID"); v != "" {
					fields = append(fields, zap.String("request_id", v))
				}

				if v := c.GetString("userID"); v != "" {
					fields = append(fields, zap.String("user_id", v))
				}

				return fields
			},
		}),
	)

	router.HandleMethodNotAllowed = true
	router.RedirectFixedPath = true

	rateLimit := viper.GetInt("security.rate_limit")
	rateLimiter := middleware.RateLimiterMiddleware(middleware.RateLimiterConfig{
		RequestsPerSecond: rateLimit,
		Burst:             rateLimit * 2,
	})
	session := middleware.NewSessionMiddleware(d.Waitlist)

	w := router.Group("/waitlist", rateLimiter)
	{
		// POST /waitlist/join 		-> Signs an email up and issues a verification link
		w.POST("/join", middleware.BodySizeLimiter(1<<20), func(c *gin.Context) { wl.Join(c, d) })

		// POST /waitlist/verify	-> Consumes a verification token and starts a session
		w.POST("/verify", middleware.BodySizeLimiter(1<<20), func(c *gin.Context) { wl.VerifyPost(c, d) })

		// GET /waitlist/verify		-> Same, for links clicked from the email
		w.GET("/verify", func(c *gin.Context) { wl.VerifyGet(c, d) })

		// GET /waitlist/dashboard	-> Returns the signed-in user's standing
		w.GET("/dashboard", session, func(c *gin.Context) { wl.Dashboard(c, d) })

		// GET /waitlist/stats		-> Aggregate counts, cached briefly
		w.GET("/stats", cacheFor(30), func(c *gin.Context) { wl.Stats(c, d) })
	}

	// GET /health			-> Liveness plus a store round trip
	router.GET("/health", func(c *gin.Context) { root.Health(c, d) })

	service.StartStatsReport(d.Waitlist)

	return router, nil
}

func makeLogger() {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.EncodeTime = func(t time.Time, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(gray + t.Format("15:04:05.000") + reset)
	}
	cfg.EncoderConfig.EncodeCaller = func(ec zapcore.EntryCaller, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(gray + ec.TrimmedPath() + reset)
	}

	cfg.DisableStacktrace = true

	if level, err := zapcore.ParseLevel(viper.GetString("app.log_level")); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(level)
	}

	log, _ := cfg.Build()
	zap.ReplaceGlobals(log)
}

func cacheFor(sec int) gin.HandlerFunc {
	return cache.CacheByRequestURI(store, time.Second*time.Duration(sec))
}
