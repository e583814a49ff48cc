/**
 * @description
 * This is the main entry point for the service. It is responsible for
 * initializing all components, including configuration, persistence, the
 * rate limiter, the mail client, the delivery pipeline, the verification
 * manager, the ledger, and the HTTP server. It wires everything together
 * and starts the service.
 *
 * @dependencies
 * - github.com/joho/godotenv: For loading .env files during local development.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - github.com/redis/go-redis/v9: Redis client for the rate limiter.
 * - internal/api, internal/app, internal/config, internal/delivery,
 *   internal/ledger, internal/ratelimit, internal/store,
 *   internal/verification: Internal packages for the service.
 * - pkg/mailclient: Client for the transactional email API.
 * - pkg/rabbitmq: Client for RabbitMQ.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/john67k/zelle-style/internal/api"
	"github.com/john67k/zelle-style/internal/app"
	"github.com/john67k/zelle-style/internal/config"
	"github.com/john67k/zelle-style/internal/delivery"
	"github.com/john67k/zelle-style/internal/ledger"
	"github.com/john67k/zelle-style/internal/ratelimit"
	"github.com/john67k/zelle-style/internal/store"
	"github.com/john67k/zelle-style/internal/verification"
	"github.com/john67k/zelle-style/pkg/mailclient"
	rmrabbit "github.com/john67k/zelle-style/pkg/rabbitmq"
)

func main() {
	// Load .env file for local development. In production, environment
	// variables are set directly.
	if err := godotenv.Load(); err != nil {
		log.Println("level=info component=bootstrap msg=\"no .env file found; using environment values\"")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if cfg.JWTSecret == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"jwt secret must be configured\" env=JWT_SECRET")
	}

	log.Printf("level=info component=bootstrap msg=\"starting service\" port=%s", cfg.ServerPort)

	// Persistence. A missing DATABASE_URL selects the in-memory repository,
	// which is enough for local development.
	var repository store.Repository
	if cfg.DatabaseURL == "" {
		log.Println("level=warn component=bootstrap msg=\"database url missing; using in-memory store\" env=DATABASE_URL")
		repository = store.NewMemoryRepository()
	} else {
		poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
		}
		poolConfig.MaxConns = 100
		poolConfig.MinConns = 20
		poolConfig.MaxConnLifetime = 30 * time.Minute
		poolConfig.MaxConnIdleTime = 5 * time.Minute
		poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

		dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
		if err != nil {
			log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
		}
		defer dbpool.Close()

		pg := store.NewPostgresRepository(dbpool)
		if err := pg.EnsureSchema(context.Background()); err != nil {
			log.Fatalf("level=fatal component=bootstrap msg=\"schema setup failed\" err=%v", err)
		}
		repository = pg
		log.Println("level=info component=bootstrap msg=\"database connected\"")
	}

	// Rate limiter. Redis gives a shared window across instances; the
	// in-memory limiter covers single-instance and local runs.
	var limiter ratelimit.Limiter = ratelimit.NewMemoryLimiter(nil)
	if cfg.RedisURL != "" {
		redisOptions, parseErr := redis.ParseURL(cfg.RedisURL)
		if parseErr != nil {
			log.Printf("level=warn component=bootstrap msg=\"redis url parse failed; using in-memory limiter\" err=%v", parseErr)
		} else {
			redisClient := redis.NewClient(redisOptions)
			pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
			pingErr := redisClient.Ping(pingCtx).Err()
			cancelPing()
			if pingErr != nil {
				log.Printf("level=warn component=bootstrap msg=\"redis ping failed; using in-memory limiter\" err=%v", pingErr)
				redisClient.Close()
			} else {
				defer redisClient.Close()
				limiter = ratelimit.NewRedisLimiter(redisClient, cfg.RedisRateLimitPrefix)
				log.Println("level=info component=bootstrap msg=\"redis connected\"")
			}
		}
	}

	// Event producer. RabbitMQ being down degrades to a no-op publisher so
	// the service still boots.
	var producer rmrabbit.Publisher
	eventProducer, err := rmrabbit.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		producer = &rmrabbit.NoopPublisher{}
	} else {
		defer eventProducer.Close()
		producer = eventProducer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	// Mail transport and delivery pipeline.
	mailer := mailclient.NewClient(cfg.MailAPIBaseURL, cfg.MailAPIKey, cfg.MailFromAddress, cfg.MailFromName)
	pipeline := delivery.NewPipeline(repository, mailer,
		delivery.WithMaxAttempts(cfg.MaxDeliveryAttempts),
		delivery.WithSendTimeout(time.Duration(cfg.SendTimeoutSeconds)*time.Second),
		delivery.WithEvents(producer, cfg.EventExchange),
	)

	// Core services.
	verifier := verification.NewManager(repository, repository, limiter, pipeline)
	ledgerService := ledger.NewService(repository, pipeline, ledger.WithEvents(producer, cfg.EventExchange))
	accounts := app.NewAccounts(repository, verifier)
	admin := app.NewAdmin(pipeline, app.NewStaticPolicy(cfg.AdminEmailList()))

	// HTTP layer.
	handlers := api.NewHandlers(accounts, verifier, ledgerService, admin)
	router := api.Routes(handlers, cfg.JWTSecret)

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	// Let in-flight async deliveries reach their terminal outcome before the
	// process exits.
	pipeline.Drain()

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
