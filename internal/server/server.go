package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/sproutfam/sprout/internal/allowance"
	"github.com/sproutfam/sprout/internal/autosave"
	"github.com/sproutfam/sprout/internal/challenge"
	"github.com/sproutfam/sprout/internal/handler"
	"github.com/sproutfam/sprout/internal/invite"
	"github.com/sproutfam/sprout/internal/level"
	"github.com/sproutfam/sprout/internal/middleware"
	"github.com/sproutfam/sprout/internal/notify"
	"github.com/sproutfam/sprout/internal/scheduler"
	"github.com/sproutfam/sprout/internal/store"
)

// Config holds the knobs the server needs beyond the database handle.
type Config struct {
	JWTSecret []byte
	// TickInterval throttles the request-driven job tick. Zero means the
	// default of one minute.
	TickInterval time.Duration
}

type Server struct {
	db            *sql.DB
	authH         *handler.AuthHandler
	inviteH       *handler.InviteHandler
	allowanceH    *handler.AllowanceHandler
	challengeH    *handler.ChallengeHandler
	shopH         *handler.ShopHandler
	autosaveH     *handler.AutoSaveHandler
	activityH     *handler.ActivityHandler
	notificationH *handler.NotificationHandler
	userStore     *store.UserStore
	registry      *scheduler.Registry
	rateLimiter   *middleware.RateLimiter
	jwtSecret     []byte
	logger        *slog.Logger
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	userStore := store.NewUserStore(db)
	familyStore := store.NewFamilyStore(db)
	inviteStore := store.NewInviteCodeStore(db)
	ruleStore := store.NewAllowanceRuleStore(db)
	activityStore := store.NewActivityStore(db)
	challengeStore := store.NewChallengeStore(db)
	levelStore := store.NewLevelStore(db)
	autosaveStore := store.NewAutoSaveStore(db)
	notificationStore := store.NewNotificationStore(db)

	notifier := notify.NewStoreNotifier(notificationStore, logger.With("component", "notify"))

	inviteSvc := invite.NewService(db, inviteStore, userStore, familyStore, logger.With("component", "invite"))
	autosaveSvc := autosave.NewService(db, autosaveStore, activityStore, levelStore, notifier, logger.With("component", "autosave"))
	allowanceSvc := allowance.NewService(db, ruleStore, activityStore, autosaveSvc, notifier, logger.With("component", "allowance"))
	challengeSvc := challenge.NewService(db, challengeStore, activityStore, levelStore, notifier, logger.With("component", "challenge"))
	levelSvc := level.NewService(db, levelStore, activityStore, challengeStore, notifier, logger.With("component", "level"))

	tickInterval := cfg.TickInterval
	if tickInterval == 0 {
		tickInterval = time.Minute
	}
	rateLimiter := middleware.NewRateLimiter()

	registry := scheduler.NewRegistry(tickInterval, logger.With("component", "scheduler"))
	registry.Register(
		scheduler.JobFunc{JobName: "allowance_run_due", Fn: func(ctx context.Context) error {
			_, err := allowanceSvc.RunDue(ctx, time.Now().UTC())
			return err
		}},
		scheduler.JobFunc{JobName: "challenge_finalize_due", Fn: func(ctx context.Context) error {
			_, err := challengeSvc.FinalizeDue(ctx, time.Now().UTC())
			return err
		}},
		scheduler.JobFunc{JobName: "invite_expire_sweep", Fn: func(ctx context.Context) error {
			_, err := inviteStore.DeleteExpired()
			return err
		}},
		scheduler.JobFunc{JobName: "ratelimit_cleanup", Fn: func(ctx context.Context) error {
			rateLimiter.Cleanup()
			return nil
		}},
	)

	return &Server{
		db:            db,
		authH:         handler.NewAuthHandler(userStore, cfg.JWTSecret, logger.With("component", "auth")),
		inviteH:       handler.NewInviteHandler(inviteSvc, logger.With("component", "invite_handler")),
		allowanceH:    handler.NewAllowanceHandler(allowanceSvc, ruleStore, logger.With("component", "allowance_handler")),
		challengeH:    handler.NewChallengeHandler(challengeSvc, logger.With("component", "challenge_handler")),
		shopH:         handler.NewShopHandler(levelSvc, logger.With("component", "shop_handler")),
		autosaveH:     handler.NewAutoSaveHandler(autosaveSvc, logger.With("component", "autosave_handler")),
		activityH:     handler.NewActivityHandler(activityStore, userStore, allowanceSvc, logger.With("component", "activity_handler")),
		notificationH: handler.NewNotificationHandler(notificationStore, logger.With("component", "notification_handler")),
		userStore:     userStore,
		registry:      registry,
		rateLimiter:   rateLimiter,
		jwtSecret:     cfg.JWTSecret,
		logger:        logger,
	}
}

// Registry exposes the job registry so a cron runner can drive it.
func (s *Server) Registry() *scheduler.Registry {
	return s.registry
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.HandleFunc("POST /api/auth/register", s.rateLimitedHandler(s.authH.Register))
	outerMux.HandleFunc("POST /api/auth/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("GET /healthz", s.healthHandler)

	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.jwtSecret, s.userStore)
	tick := middleware.Tick(s.registry)
	outerMux.Handle("/api/", authMiddleware(tick(protectedMux)))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	guardian := middleware.RequireGuardian

	mux.HandleFunc("GET /api/auth/me", s.authH.Me)

	// Invite codes: issuing is guardian-only, verify and link are open to
	// any authenticated user.
	mux.Handle("POST /api/invites", guardian(http.HandlerFunc(s.inviteH.Issue)))
	mux.HandleFunc("POST /api/invites/verify", s.inviteH.Verify)
	mux.HandleFunc("POST /api/invites/link", s.inviteH.Link)

	// Allowance rules
	mux.Handle("POST /api/allowance-rules", guardian(http.HandlerFunc(s.allowanceH.Create)))
	mux.Handle("GET /api/allowance-rules", guardian(http.HandlerFunc(s.allowanceH.List)))
	mux.Handle("PUT /api/allowance-rules/{id}/active", guardian(http.HandlerFunc(s.allowanceH.SetActive)))
	mux.HandleFunc("POST /api/allowance-rules/run", s.allowanceH.RunDue)

	// Challenges
	mux.Handle("POST /api/challenges/templates", guardian(http.HandlerFunc(s.challengeH.CreateTemplate)))
	mux.HandleFunc("GET /api/challenges/templates", s.challengeH.ListTemplates)
	mux.HandleFunc("POST /api/challenges/start", s.challengeH.Start)
	mux.HandleFunc("GET /api/challenges", s.challengeH.ListMine)
	mux.HandleFunc("POST /api/challenges/{id}/checkins", s.challengeH.CheckIn)
	mux.HandleFunc("GET /api/challenges/{id}/progress", s.challengeH.Progress)
	mux.HandleFunc("POST /api/challenges/{id}/cancel", s.challengeH.Cancel)
	mux.HandleFunc("POST /api/challenges/{id}/finalize", s.challengeH.Finalize)

	// Levels and shop
	mux.HandleFunc("GET /api/levels/me", s.shopH.Summary)
	mux.HandleFunc("POST /api/levels/grant", s.shopH.Grant)
	mux.HandleFunc("GET /api/shop", s.shopH.ListItems)
	mux.HandleFunc("GET /api/shop/unlocks", s.shopH.ListUnlocks)
	mux.HandleFunc("POST /api/shop/purchase", s.shopH.Purchase)

	// Auto-save policy
	mux.HandleFunc("GET /api/autosave", s.autosaveH.Get)
	mux.HandleFunc("PUT /api/autosave", s.autosaveH.Set)
	mux.HandleFunc("POST /api/autosave/claim-weekly", s.autosaveH.ClaimWeekly)

	// Ledger
	mux.HandleFunc("GET /api/activities", s.activityH.List)
	mux.HandleFunc("POST /api/activities", s.activityH.Record)
	mux.Handle("POST /api/activities/allowance", guardian(http.HandlerFunc(s.activityH.RecordAllowance)))

	// Notifications
	mux.HandleFunc("GET /api/notifications", s.notificationH.List)
	mux.HandleFunc("POST /api/notifications/{id}/read", s.notificationH.MarkRead)
}
