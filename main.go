package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-clubs/internal/analytics"
	analytics_api "ms-clubs/internal/analytics/api"
	"ms-clubs/internal/auth"
	"ms-clubs/internal/authz"
	"ms-clubs/internal/cache"
	"ms-clubs/internal/catalog"
	"ms-clubs/internal/catalog/catalog_api"
	catalog_db "ms-clubs/internal/catalog/db"
	"ms-clubs/internal/community"
	"ms-clubs/internal/community/community_api"
	community_db "ms-clubs/internal/community/db"
	"ms-clubs/internal/config"
	"ms-clubs/internal/kafka"
	"ms-clubs/internal/logger"
	"ms-clubs/internal/membership"
	membership_db "ms-clubs/internal/membership/db"
	"ms-clubs/internal/membership/member_api"
	"ms-clubs/internal/sse"
	"ms-clubs/internal/students"
	students_db "ms-clubs/internal/students/db"
	"ms-clubs/internal/students/student_api"
	"ms-clubs/internal/ticketing"
	ticketing_db "ms-clubs/internal/ticketing/db"
	"ms-clubs/internal/ticketing/ticket_api"
)

func connectPostgres(cfg *config.Config, log *logger.Logger) *bun.DB {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Attempting to connect to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			log.Error("DATABASE", fmt.Sprintf("Failed to open PostgreSQL: %v", err))
			time.Sleep(2 * time.Second)
			continue
		}

		err = sqldb.Ping()
		if err == nil {
			break
		}

		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	log.Info("DATABASE", "✅ PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New())
}

func connectRedis(ctx context.Context, cfg *config.Config, log *logger.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Redis connection error: %v", err))
	}
	log.Info("DATABASE", fmt.Sprintf("✅ Redis connection successful to %s", cfg.Redis.Addr))
	return client
}

// routerHandlers bundles the HTTP handlers the route tree is built from.
type routerHandlers struct {
	catalog   *catalog_api.Handler
	members   *member_api.Handler
	tickets   *ticket_api.Handler
	sse       *ticket_api.SSEHandler
	students  *student_api.Handler
	community *community_api.Handler
	analytics *analytics_api.Handler
}

// newRouter builds the route tree. Catalog reads (clubs, rooms, events) are
// served without authentication; everything that identifies or mutates goes
// through the JWT middleware.
func newRouter(jwtSecret string, log *logger.Logger, h routerHandlers) *chi.Mux {
	r := chi.NewRouter()
	requireAuth := auth.Middleware(jwtSecret)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.students.Register)
			r.Post("/login", h.students.Login)
			r.Get("/verify/{code}", h.students.VerifyEmail)
		})
		log.Info("ROUTER", "Public auth endpoints registered under /api/auth")

		r.Route("/clubs", func(r chi.Router) {
			r.Get("/", h.catalog.ListClubs)
			r.Get("/{clubID}", h.catalog.GetClub)
			r.Get("/{clubID}/events", h.catalog.ListClubEvents)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)

				r.Post("/", h.catalog.CreateClub)
				r.Put("/{clubID}", h.catalog.UpdateClub)
				r.Delete("/{clubID}", h.catalog.DeleteClub)

				r.Get("/{clubID}/members", h.members.ListClubMembers)
				r.Post("/{clubID}/members", h.members.AddMember)
				r.Post("/{clubID}/head/{userID}", h.members.AssignHead)

				r.Get("/{clubID}/subscriptions", h.community.ListClubSubscribers)
				r.Post("/{clubID}/subscriptions", h.community.Subscribe)

				r.Get("/{clubID}/tickets/stream", h.sse.StreamClubPurchases)
			})
		})
		log.Info("ROUTER", "Club routes registered under /api/clubs")

		r.Route("/rooms", func(r chi.Router) {
			r.Get("/", h.catalog.ListRooms)
			r.Get("/{roomID}", h.catalog.GetRoom)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)

				r.Post("/", h.catalog.CreateRoom)
				r.Put("/{roomID}", h.catalog.UpdateRoom)
				r.Delete("/{roomID}", h.catalog.DeleteRoom)
			})
		})

		r.Route("/events", func(r chi.Router) {
			r.Get("/", h.catalog.ListEvents)
			r.Get("/{eventID}", h.catalog.GetEvent)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)

				r.Post("/", h.catalog.CreateEvent)
				r.Put("/{eventID}", h.catalog.UpdateEvent)
				r.Delete("/{eventID}", h.catalog.DeleteEvent)

				r.Get("/{eventID}/tickets", h.tickets.ListEventTickets)
				r.Post("/{eventID}/tickets", h.tickets.PurchaseTicket)
				r.Get("/{eventID}/tickets/stream", h.sse.StreamEventPurchases)

				r.Get("/{eventID}/reviews", h.community.ListEventReviews)
				r.Post("/{eventID}/reviews", h.community.CreateReview)
			})
		})
		log.Info("ROUTER", "Event and ticket purchase routes registered under /api/events")

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Route("/memberships", func(r chi.Router) {
				r.Patch("/{membershipID}", h.members.ChangeRole)
				r.Delete("/{membershipID}", h.members.RemoveMember)
			})

			r.Route("/tickets", func(r chi.Router) {
				r.Get("/", h.tickets.ListTickets)
				r.Get("/{ticketID}", h.tickets.ViewTicket)
				r.Get("/{ticketID}/qr", h.tickets.TicketQR)
				r.Delete("/{ticketID}", h.tickets.CancelTicket)
			})

			r.Route("/reviews", func(r chi.Router) {
				r.Patch("/{reviewID}", h.community.UpdateReview)
				r.Delete("/{reviewID}", h.community.DeleteReview)
			})

			r.Route("/subscriptions", func(r chi.Router) {
				r.Delete("/{subscriptionID}", h.community.Unsubscribe)
			})

			r.Route("/students", func(r chi.Router) {
				r.Get("/", h.students.ListStudents)
				r.Get("/me", h.students.Me)
				r.Get("/{studentID}", h.students.GetStudent)
				r.Patch("/{studentID}", h.students.UpdateStudent)
				r.Post("/{studentID}/wallet", h.students.TopUp)

				r.Get("/{studentID}/tickets", h.tickets.ListStudentTickets)
				r.Get("/{studentID}/clubs", h.members.ListUserMemberships)
				r.Get("/{studentID}/subscriptions", h.community.ListUserSubscriptions)
			})
			log.Info("ROUTER", "Student routes registered under /api/students")

			h.analytics.RegisterRoutes(r)
			log.Info("ROUTER", "Analytics routes registered under /api/analytics")
		})
	})

	return r
}

func main() {
	log := logger.NewLogger()
	defer log.Close()

	log.Info("APP", "Starting Club Service initialization")

	if err := godotenv.Load(); err != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	ctx := context.Background()

	bunDB := connectPostgres(cfg, log)
	defer bunDB.Close()

	redisClient := connectRedis(ctx, cfg, log)
	defer redisClient.Close()

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(cfg.Kafka.Brokers)
		log.Info("KAFKA", "Kafka producer initialized successfully")

		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, kafka.RequiredTopics()); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		} else {
			log.Info("KAFKA", "Required topics ensured successfully")
		}
		defer producer.Close()
	} else {
		log.Warn("KAFKA", "Kafka disabled, email notifications will not be sent")
	}

	membershipDB := &membership_db.DB{Bun: bunDB}
	authorizer := authz.NewAuthorizer(membershipDB)
	eventCache := cache.NewEventCache(redisClient, log)

	// kafka.Producer is used through the services' Publisher interfaces; a
	// nil *Producer must stay a nil interface value.
	var publisher membership.Publisher
	if producer != nil {
		publisher = producer
	}
	var ticketPublisher ticketing.Publisher
	if producer != nil {
		ticketPublisher = producer
	}
	var studentPublisher students.Publisher
	if producer != nil {
		studentPublisher = producer
	}

	purchaseEmitter := sse.NewPurchaseEmitter()

	catalogService := catalog.NewService(&catalog_db.DB{Bun: bunDB}, authorizer, eventCache, log)
	membershipService := membership.NewService(membershipDB, authorizer, publisher, log)
	ticketingService := ticketing.NewService(&ticketing_db.DB{Bun: bunDB}, membershipDB, authorizer, ticketPublisher, purchaseEmitter, log)
	studentService := students.NewService(&students_db.DB{Bun: bunDB}, authorizer, studentPublisher, log, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	communityService := community.NewService(&community_db.DB{Bun: bunDB}, ticketingService, authorizer, log)
	analyticsService := analytics.NewService(bunDB)

	catalogHandler := catalog_api.NewHandler(catalogService, eventCache)
	memberHandler := member_api.NewHandler(membershipService)
	ticketHandler := ticket_api.NewHandler(ticketingService, catalogService)
	sseHandler := ticket_api.NewSSEHandler(log, purchaseEmitter, authorizer, catalogService)
	studentHandler := student_api.NewHandler(studentService)
	communityHandler := community_api.NewHandler(communityService)
	analyticsHandler := analytics_api.NewHandler(analyticsService, authorizer, log)

	log.Info("HTTP", "Setting up router and middleware")
	r := newRouter(cfg.Auth.JWTSecret, log, routerHandlers{
		catalog:   catalogHandler,
		members:   memberHandler,
		tickets:   ticketHandler,
		sse:       sseHandler,
		students:  studentHandler,
		community: communityHandler,
		analytics: analyticsHandler,
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("🚀 Club Service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "✅ Club Service shutdown complete")
	}
}
