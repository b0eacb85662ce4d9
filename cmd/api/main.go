package main

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/joho/godotenv"

	"github.com/tukangin-app/tukangin_be/internal/booking"
	"github.com/tukangin-app/tukangin_be/internal/chat"
	"github.com/tukangin-app/tukangin_be/internal/config"
	"github.com/tukangin-app/tukangin_be/internal/db"
	"github.com/tukangin-app/tukangin_be/internal/handlers"
	"github.com/tukangin-app/tukangin_be/internal/metrics"
	"github.com/tukangin-app/tukangin_be/internal/middleware"
	"github.com/tukangin-app/tukangin_be/internal/models"
	"github.com/tukangin-app/tukangin_be/internal/realtime"
)

const offerMaxAge = 72 * time.Hour

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	gdb, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}

	if err := gdb.AutoMigrate(
		&models.User{},
		&models.ProviderProfile{},
		&models.ServiceRequest{},
		&models.Offer{},
		&models.Conversation{},
		&models.Message{},
		&models.Notification{},
	); err != nil {
		log.Fatal(err)
	}

	rdb := realtime.NewRedis(cfg.RedisAddr, cfg.RedisPassword)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatal("Redis not reachable:", err)
	}

	hub := realtime.NewHub()
	go hub.Run()
	realtime.BridgeNotifications(context.Background(), rdb, hub)

	go metrics.Serve(cfg.MetricsAddr)

	notifier := handlers.NewNotifier(gdb, hub, rdb)
	chatSvc := chat.NewService(chat.NewGormStore(gdb), hub, notifier)
	notifier.Chat = chatSvc
	bookingSvc := booking.NewService(booking.NewGormStore(gdb), notifier)
	bookingSvc.StartOfferExpiryWorker(offerMaxAge)

	authH := &handlers.AuthHandler{
		DB:        gdb,
		JWTSecret: cfg.JWTSecret,
		Expires:   cfg.JWTExpiresMin,
	}
	googleH := &handlers.GoogleOAuthHandler{
		DB:              gdb,
		JWTSecret:       cfg.JWTSecret,
		Expires:         cfg.JWTExpiresMin,
		GoogleClientID:  cfg.GoogleClientID,
		GoogleSecret:    cfg.GoogleSecret,
		GoogleRedirect:  cfg.GoogleRedirect,
		FrontendBaseURL: cfg.FrontendBaseURL,
	}
	bookingH := handlers.NewBookingHandler(gdb, bookingSvc)
	recoH := handlers.NewRecommendationHandler(gdb)
	chatH := handlers.NewChatHandler(gdb, chatSvc)
	notifH := handlers.NewNotificationHandler(gdb)
	profileH := handlers.NewProfileHandler(gdb)
	wsH := handlers.NewWSHandler(gdb, hub)

	app := fiber.New()

	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://127.0.0.1:3000, http://localhost:3000",
		AllowMethods:     "GET,POST,PUT,PATCH,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		ExposeHeaders:    "Content-Length",
		AllowCredentials: true,
	}))

	app.Options("/*", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	api := app.Group("/api")

	// public
	api.Post("/auth/register", authH.Register)
	api.Post("/auth/login", authH.Login)
	api.Post("/auth/logout", authH.Logout)
	api.Get("/auth/google/start", googleH.GoogleStart)
	api.Get("/auth/google/callback", googleH.GoogleCallback)

	// protected (JWT from cookie)
	protected := api.Group("/",
		middleware.JWTFromCookie(cfg.JWTSecret),
		middleware.AttachJWTLocals(),
	)

	protected.Get("/me", authH.Me)

	protected.Get("/providers/me/profile",
		middleware.RequireRoles("provider"),
		profileH.GetMyProfile,
	)
	protected.Patch("/providers/me/profile",
		middleware.RequireRoles("provider"),
		profileH.UpdateMyProfile,
	)

	protected.Get("/requests", bookingH.ListRequests)
	protected.Post("/requests", middleware.RequireRoles("client", "admin"), bookingH.CreateRequest)
	protected.Get("/requests/:id", bookingH.GetRequest)
	protected.Post("/requests/:id/offers",
		middleware.RequireRoles("client", "admin"),
		bookingH.CreateOffer,
	)
	protected.Post("/requests/:id/applications",
		middleware.RequireRoles("provider"),
		bookingH.Apply,
	)
	protected.Patch("/offers/:id/respond", bookingH.Respond)
	protected.Patch("/requests/:id/start", middleware.RequireRoles("provider"), bookingH.Start)
	protected.Patch("/requests/:id/complete", middleware.RequireRoles("provider"), bookingH.Complete)
	protected.Patch("/requests/:id/cancel", bookingH.Cancel)

	protected.Get("/recommendations/jobs",
		middleware.RequireRoles("provider"),
		recoH.RecommendedJobs,
	)
	protected.Get("/recommendations/providers", recoH.RecommendedProviders)

	chatGroup := protected.Group("/chat")
	chatGroup.Get("/conversations", chatH.ListConversations)
	chatGroup.Get("/conversations/:id/messages", chatH.GetMessages)
	chatGroup.Post("/conversations/:id/messages", chatH.SendMessage)
	chatGroup.Patch("/conversations/:id/seen", chatH.MarkSeen)
	chatGroup.Get("/unread-total", chatH.UnreadTotal)

	protected.Get("/notifications", notifH.List)
	protected.Patch("/notifications/:id/read", notifH.MarkRead)

	// websocket: same cookie auth, upgraded after the JWT middleware ran
	app.Get("/ws",
		middleware.JWTFromCookie(cfg.JWTSecret),
		middleware.AttachJWTLocals(),
		func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		},
		websocket.New(wsH.Serve),
	)

	log.Fatal(app.Listen(":" + cfg.AppPort))
}
