package server

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"openpatrol/api/internal/config"
	"openpatrol/api/internal/handler"
	"openpatrol/api/internal/middleware"
	"openpatrol/api/internal/service"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// OverdueCheckerInterface is the background checker contract
type OverdueCheckerInterface interface {
	Start()
	Stop()
}

// Server represents the HTTP server
type Server struct {
	router         *gin.Engine
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	nats           *nats.Conn
	wsHub          *handler.WSHub
	wsHandler      *handler.WSHandler
	overdueChecker OverdueCheckerInterface
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, natsConn *nats.Conn) *Server {
	return &Server{
		config: cfg,
		db:     db,
		redis:  redisClient,
		nats:   natsConn,
	}
}

// Setup initializes services, handlers and routes
func (s *Server) Setup() {
	s.wsHub = handler.NewWSHub(s.nats)
	s.wsHandler = handler.NewWSHandler(s.wsHub)

	// Services
	geofence := service.NewGeofenceValidator(s.config.Geofence.DefaultRadiusM)
	authService := service.NewAuthService(s.db)
	serviceManager := service.NewPatrolServiceManager(s.db, s.redis)
	checkpointService := service.NewCheckpointService(s.db, s.redis)
	qrResolver := service.NewQRResolver(s.db)
	visitService := service.NewVisitService(s.db, s.nats, geofence)
	alertEngine := service.NewAlertEngine(s.db, service.AlertThresholds{
		GraceMinutes:  s.config.Alert.GraceWindowMinutes,
		MediumMinutes: s.config.Alert.MediumAfterMinutes,
		HighMinutes:   s.config.Alert.HighAfterMinutes,
	}, s.config.Alert.UseServiceInterval)
	userService := service.NewUserService(s.db)
	reportService := service.NewReportService(s.db)

	// Handlers
	authHandler := handler.NewAuthHandler(authService, serviceManager, s.config)
	qrHandler := handler.NewQRHandler(qrResolver, geofence)
	visitHandler := handler.NewVisitHandler(visitService)
	alertHandler := handler.NewAlertHandler(alertEngine)
	checkpointHandler := handler.NewCheckpointHandler(checkpointService)
	serviceHandler := handler.NewServiceHandler(serviceManager)
	userHandler := handler.NewUserHandler(userService)
	reportHandler := handler.NewReportHandler(reportService)

	go s.wsHub.Run()
	log.Println("[Server] WebSocket hub started")

	s.router = gin.Default()

	// CORS middleware
	s.router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	// Rate limiting
	if s.config.RateLimit.Enabled && s.redis != nil {
		limiter := middleware.NewRedisRateLimiter(s.redis)
		group := middleware.NewRateLimitGroup(limiter, s.config.RateLimit.DefaultRule.ToMiddlewareConfig())
		for _, rule := range s.config.RateLimit.SpecificRules {
			group.AddSpecificConfig(rule.Path, rule.ToMiddlewareConfig())
		}
		s.router.Use(group.Middleware())
		log.Println("[Server] Rate limiting enabled")
	}

	// Swagger UI
	s.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Public routes
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	s.router.POST("/api/v1/auth/login", authHandler.Login)

	// WebSocket feed
	s.router.GET("/ws/feed", s.wsHandler.HandleFeed)
	s.router.GET("/ws/stats", s.wsHandler.GetStats)

	// Protected routes
	api := s.router.Group("/api/v1")
	api.Use(middleware.JWTAuth(s.db, s.config.JWTSecret))
	{
		// Auth
		api.GET("/auth/me", authHandler.GetMe)

		// QR validation
		api.POST("/qr/validate", qrHandler.Validate)

		// Visits
		api.POST("/visits", visitHandler.Record)
		api.GET("/visits", visitHandler.List)
		api.POST("/visits/sync", visitHandler.Sync)

		// Alerts
		api.GET("/alerts", alertHandler.List)
		api.GET("/alerts/count", alertHandler.Count)

		// Checkpoints
		api.GET("/checkpoints", checkpointHandler.List)
		api.POST("/checkpoints", checkpointHandler.Create)
		api.GET("/checkpoints/:id", checkpointHandler.Get)
		api.PUT("/checkpoints/:id", checkpointHandler.Update)
		api.DELETE("/checkpoints/:id", checkpointHandler.Delete)
		api.GET("/checkpoints/:id/qr", checkpointHandler.QRImage)

		// Services
		api.GET("/services", serviceHandler.List)
		api.POST("/services", serviceHandler.Create)
		api.GET("/services/:id", serviceHandler.Get)
		api.PUT("/services/:id", serviceHandler.Update)
		api.DELETE("/services/:id", serviceHandler.Delete)
		api.GET("/services/:id/stats", serviceHandler.Stats)

		// Users
		api.GET("/users", userHandler.List)
		api.GET("/users/guards", userHandler.ListGuards)
		api.POST("/users", userHandler.Create)
		api.GET("/users/:id", userHandler.Get)
		api.PUT("/users/:id", userHandler.Update)
		api.DELETE("/users/:id", userHandler.Delete)

		// Reports
		api.GET("/reports/visits", reportHandler.Visits)
		api.GET("/reports/visits/summary", reportHandler.Summary)
		api.GET("/reports/visits/export", reportHandler.Export)
	}
}

// SetOverdueChecker sets the background overdue checker
func (s *Server) SetOverdueChecker(checker OverdueCheckerInterface) {
	s.overdueChecker = checker
}

// Run starts the HTTP server
func (s *Server) Run(addr string) error {
	log.Printf("[Server] HTTP server listening on %s", addr)
	return s.router.Run(addr)
}

// GetRouter returns the gin router for testing
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

// Shutdown gracefully shuts down background components
func (s *Server) Shutdown() {
	if s.wsHub != nil {
		s.wsHub.Stop()
		log.Println("[Server] WebSocket hub stopped")
	}
	if s.overdueChecker != nil {
		s.overdueChecker.Stop()
		log.Println("[Server] Overdue checker stopped")
	}
}
