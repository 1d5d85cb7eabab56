package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shopapi/config"
	"shopapi/controllers"
	"shopapi/database"
	"shopapi/database/memstore"
	"shopapi/events"
	"shopapi/mailer"
	"shopapi/middleware"
	"shopapi/payment"
	"shopapi/rdx"
	"shopapi/routes"
	"shopapi/services"
	"shopapi/token"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	config.LoadEnv()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	ctx := context.Background()
	var closers []func(context.Context) error

	var store services.Store
	if cfg.DBDriver == "memory" {
		log.Println("⚠️  Using the in-memory store; data is lost on restart")
		if cfg.MongoTransactions {
			store = memstore.NewTransactional()
		} else {
			store = memstore.New()
		}
	} else {
		mongoStore, err := database.ConnectMongo(ctx, cfg.MongoURI, cfg.DBName, cfg.MongoTransactions)
		if err != nil {
			log.Fatalf("❌ MongoDB: %v", err)
		}
		if err := mongoStore.EnsureIndexes(ctx); err != nil {
			log.Fatalf("❌ MongoDB indexes: %v", err)
		}
		closers = append(closers, mongoStore.Close)
		store = mongoStore
	}

	var (
		verified services.ResetVerifier = rdx.NewLocalVerifications(cfg.ResetVerifiedTTL)
		failures mailer.FailureLog      = mailer.NewMemoryFailures(200)
	)
	if cfg.RedisAddr != "" {
		conn, err := rdx.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			log.Fatalf("❌ Redis: %v", err)
		}
		closers = append(closers, func(context.Context) error { return conn.Close() })
		verified = &rdx.Verifications{Conn: conn, TTL: cfg.ResetVerifiedTTL}
		failures = &rdx.MailFailures{Conn: conn}
	} else {
		log.Println("⚠️  REDIS_ADDR not set; reset verifications and mail failures are kept in process")
	}

	var sender mailer.Sender = mailer.LogSender{}
	if cfg.SMTPHost != "" {
		sender = mailer.SMTPSender{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		}
	}
	dispatcher := mailer.NewDispatcher(sender, failures, 100)
	dispatcher.Start()

	hub := events.NewHub()
	go hub.Run()

	tokens := token.NewIssuer(cfg.JWTSecret, cfg.UserTokenTTL, cfg.AdminTokenTTL, cfg.ResetTokenTTL)
	ctl := &controllers.Controller{
		Auth: &services.AuthService{
			Store:           store,
			Tokens:          tokens,
			Mail:            dispatcher,
			Verified:        verified,
			RequireVerified: cfg.ResetRequireVerified,
		},
		Catalog:  &services.CatalogService{Store: store},
		Orders:   services.NewOrderService(store, hub),
		Payments: payment.NewMpesaClient(cfg.MpesaBaseURL, cfg.MpesaConsumerKey, cfg.MpesaConsumerSecret),
		Failures: failures,
	}

	r := gin.Default()
	r.SetTrustedProxies(nil)
	r.Use(cors.New(corsConfig(cfg.CORSOrigins)))
	routes.RegisterRoutes(r, routes.Deps{
		Controller:  ctl,
		Tokens:      tokens,
		Hub:         hub,
		AuthLimiter: middleware.NewRateLimiter(cfg.AuthRatePerMin),
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       7 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}
	server.RegisterOnShutdown(hub.Stop)

	go func() {
		log.Printf("🚀 Server listening on :%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("❌ ListenAndServe: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("🛑 Shutdown signal received; shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	if err := dispatcher.Stop(shutdownCtx); err != nil {
		log.Printf("Mail queue not drained: %v", err)
	}
	for _, closeFn := range closers {
		if err := closeFn(shutdownCtx); err != nil {
			log.Printf("Close error: %v", err)
		}
	}
	log.Println("✅ Server stopped cleanly")
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 1 && origins[0] == "*" {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}
