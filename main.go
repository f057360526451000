// main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-tours/config"
	"go-tours/controllers"
	"go-tours/middleware"
	"go-tours/repositories"
	"go-tours/routes"
	"go-tours/services"
	"go-tours/utils"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load environment variables from .env file
	config.LoadEnv()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	// Connect to MongoDB
	client, err := utils.ConnectDB(context.Background(), utils.DatabaseURI(cfg.DatabaseURI, cfg.DatabasePassword))
	if err != nil {
		log.Fatal(err)
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			log.Println(err)
		}
	}()
	db := client.Database(cfg.DatabaseName)

	users := repositories.NewUserRepository(db)
	tours := repositories.NewTourRepository(db)
	reviews := repositories.NewReviewRepository(db)
	for _, idx := range []interface {
		EnsureIndexes(ctx context.Context) error
	}{users, tours, reviews} {
		if err := idx.EnsureIndexes(context.Background()); err != nil {
			log.Fatal(err)
		}
	}
	log.Println("Indexes ensured")

	// Initialize EmailService
	mailer, err := utils.NewMailer(utils.MailConfig{
		Provider:         cfg.MailProvider,
		PostmarkAPIToken: cfg.PostmarkAPIToken,
		SendgridAPIKey:   cfg.SendgridAPIKey,
		SenderEmail:      cfg.EmailSender,
		SenderName:       cfg.EmailSenderName,
	})
	if err != nil {
		log.Fatal(err)
	}
	emailService := utils.NewEmailService(mailer)

	// Rate limit counters live in Redis when configured
	var store middleware.RateStore = middleware.NewMemoryStore()
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Fatalf("redis ping failed: %v", err)
		}
		defer rdb.Close()
		store = middleware.NewRedisStore(rdb)
		log.Println("Connected to Redis!")
	}

	tokens := utils.NewTokenService(cfg.JWTSecret, cfg.JWTExpires)
	authService := services.NewAuthService(users, tokens, emailService)

	// Initialize controllers
	viewController, err := controllers.NewViewController(tours, users, reviews)
	if err != nil {
		log.Fatal(err)
	}
	app := routes.App{
		Users:   controllers.NewUserController(authService, users, controllers.CookieOptions{TTL: cfg.JWTCookieExpires, Secure: cfg.Production()}),
		Tours:   controllers.NewTourController(tours, users, reviews),
		Reviews: controllers.NewReviewController(reviews, tours, users),
		Views:   viewController,
		Auth:    middleware.NewAuthenticator(authService),
		Errors:  &middleware.ErrorHandler{Production: cfg.Production(), Pages: viewController},
	}

	// Set up the router
	router := mux.NewRouter()
	routes.RegisterRoutes(router, app)

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: routes.Handler(router, routes.Options{
			Production:     cfg.Production(),
			AllowedOrigins: cfg.AllowedOrigins,
			TrustProxy:     cfg.TrustProxy,
			Limiter:        &middleware.RateLimiter{Store: store, Limit: cfg.APIRequestLimit, Window: time.Hour},
			AccessLog:      os.Stdout,
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server is running on port %s (env=%s)", cfg.Port, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit
	log.Println("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
