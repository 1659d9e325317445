package main // Entry point package

import (
	"log"  // Logging library
	"time" // Durations for hold and confirmation windows

	"github.com/joho/godotenv"    // Loads .env files into the environment
	"github.com/labstack/echo/v4" // Echo web framework

	"github.com/iliyamo/cinema-checkout/internal/checkout"
	"github.com/iliyamo/cinema-checkout/internal/config"
	"github.com/iliyamo/cinema-checkout/internal/database"
	"github.com/iliyamo/cinema-checkout/internal/handler"
	"github.com/iliyamo/cinema-checkout/internal/inventory"
	"github.com/iliyamo/cinema-checkout/internal/payment"
	"github.com/iliyamo/cinema-checkout/internal/queue"
	"github.com/iliyamo/cinema-checkout/internal/repository"
	"github.com/iliyamo/cinema-checkout/internal/router"
	queue_publisher "github.com/iliyamo/cinema-checkout/internal/service"
)

func main() {
	// .env is optional; real deployments set variables in the environment.
	if err := godotenv.Load(); err != nil {
		log.Println("[main] no .env file loaded, using process environment")
	}
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("[main] database connection failed: %v", err)
	}
	defer db.Close()

	// Redis may be nil; rate limiting and response caching degrade open.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("[main] redis unavailable, rate limiting and caching disabled")
	}

	showtimes := repository.NewShowtimeRepo(db)
	bookings := repository.NewBookingRepo(db)
	users := repository.NewUserRepo(db)

	counter := payment.NewCounterAdapter()
	qr := payment.NewQRAdapter()
	registry := payment.NewRegistry(counter, qr)

	svc := checkout.NewService(
		inventory.NewStore(),
		showtimes,
		bookings,
		registry,
		queue_publisher.NewNotifier(),
		time.Duration(cfg.HoldTTLSeconds)*time.Second,
		time.Duration(cfg.ConfirmWindowSeconds)*time.Second,
	)

	// The notification consumer reconnects on its own; a hard failure
	// only disables e-ticket delivery, never checkout.
	go func() {
		if err := queue.StartNotificationConsumer(); err != nil {
			log.Printf("[main] notification consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(users, cfg.JWTSecret, cfg.AccessTTLMin, cfg.BcryptCost), cfg.JWTSecret)
	router.RegisterBrowse(e, handler.NewBrowseHandler(showtimes, svc), rdb)
	router.RegisterCheckout(e, handler.NewCheckoutHandler(svc, users, qr), cfg.JWTSecret, rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
