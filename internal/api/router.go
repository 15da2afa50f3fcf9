package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/trainlyhq/trainly-core/internal/api/handlers"
	"github.com/trainlyhq/trainly-core/internal/api/middleware"
	"github.com/trainlyhq/trainly-core/internal/app"
	"github.com/trainlyhq/trainly-core/internal/audit"
	"github.com/trainlyhq/trainly-core/internal/authz"
	"github.com/trainlyhq/trainly-core/internal/cache"
	"github.com/trainlyhq/trainly-core/internal/chat"
	"github.com/trainlyhq/trainly-core/internal/config"
	"github.com/trainlyhq/trainly-core/internal/credits"
	"github.com/trainlyhq/trainly-core/internal/document"
	"github.com/trainlyhq/trainly-core/internal/identity"
	"github.com/trainlyhq/trainly-core/internal/llm"
	"github.com/trainlyhq/trainly-core/internal/oauth"
	"github.com/trainlyhq/trainly-core/internal/queue"
	"github.com/trainlyhq/trainly-core/internal/shadow"
	"github.com/trainlyhq/trainly-core/internal/vectorstore"
)

type Router struct {
	mux      *chi.Mux
	db       *pgxpool.Pool
	redis    *redis.Client
	cfg      *config.Config
	verifier identity.Verifier
}

func NewRouter(db *pgxpool.Pool, rdb *redis.Client, cfg *config.Config) *Router {
	var verifier identity.Verifier
	if cfg.Identity.DevSubject != "" {
		verifier = identity.Static{Subject: cfg.Identity.DevSubject}
	} else {
		verifier = identity.NewJWTVerifier(cfg.Identity.ProviderSecret, cfg.Identity.Issuer, cfg.Identity.Audience)
	}

	return &Router{
		mux:      chi.NewRouter(),
		db:       db,
		redis:    rdb,
		cfg:      cfg,
		verifier: verifier,
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	rl := middleware.NewRateLimiter(100, 200)
	r.Use(rl.Limit)

	health := handlers.NewHealthHandler(rt.db, rt.redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	// Services
	redisCache := cache.New(rt.redis)
	appSvc := app.NewService(rt.db)
	chatSvc := chat.NewService(rt.db)
	authzSvc := authz.NewService(rt.db, appSvc)
	auditSvc := audit.NewService(rt.db)
	ledger := credits.NewLedger(rt.db)
	docSvc := document.NewService(rt.db)
	store := vectorstore.NewPgVectorStore(rt.db)
	gateway := llm.NewGateway(rt.cfg.LLM)
	tasks := queue.NewClient(rt.cfg.Redis)
	provisioner := shadow.NewProvisioner(rt.db, chatSvc, appSvc, ledger)
	migrator := shadow.NewMigrator(rt.db, redisCache)
	exchange := oauth.NewService(appSvc, chatSvc, authzSvc, rt.verifier)

	scoped := handlers.NewScopedAuth(appSvc, rt.cfg.Tokens.RotationGrace)
	keyLimiter := middleware.NewKeyLimiter(redisCache)
	requireUser := middleware.RequireUser(rt.verifier)
	requireAdmin := middleware.RequireAdmin(rt.cfg.Identity.AdminSubjects)

	// Handlers
	oauthH := handlers.NewOAuthHandler(exchange, auditSvc)
	queryH := handlers.NewQueryHandler(scoped, chatSvc, ledger, gateway, store, auditSvc, rt.cfg.LLM.DefaultModel)
	widgetH := handlers.NewWidgetHandler(chatSvc, queryH, keyLimiter, tasks)
	uploadH := handlers.NewUploadHandler(scoped, docSvc, tasks)
	appH := handlers.NewAppHandler(appSvc, chatSvc, auditSvc)
	chatH := handlers.NewChatHandler(chatSvc, appSvc, auditSvc)
	authzH := handlers.NewAuthzHandler(authzSvc, appSvc, store, auditSvc)
	provisionH := handlers.NewProvisionHandler(provisioner, auditSvc)
	migrateH := handlers.NewMigrateHandler(migrator, auditSvc)
	creditsH := handlers.NewCreditsHandler(ledger)
	adminH := handlers.NewAdminHandler(auditSvc)

	r.Post("/oauth/token", oauthH.Token)

	r.Route("/v1", func(r chi.Router) {
		// Scoped-token surface. list_files and download_file have no route
		// here on purpose.
		r.Post("/ask", queryH.Ask)
		r.Post("/upload", uploadH.Upload)
		r.Get("/documents/{id}/status", uploadH.Status)

		// Widget surface (integration keys)
		r.Post("/widget/ask", widgetH.Ask)

		// Shadow lifecycle
		r.Post("/provision", provisionH.Provision)
		r.With(requireUser).Post("/migrate", migrateH.Migrate)

		// Consent flow
		r.Get("/authorize", authzH.Present)
		r.Group(func(r chi.Router) {
			r.Use(requireUser)
			r.Post("/authorize", authzH.Authorize)
			r.Get("/authorizations", authzH.List)
			r.Delete("/authorizations/{appID}", authzH.Revoke)
		})

		// Credits (authenticated user)
		r.Group(func(r chi.Router) {
			r.Use(requireUser)
			r.Get("/credits", creditsH.Balance)
			r.Get("/credits/transactions", creditsH.Transactions)
			r.Post("/credits/tier", creditsH.SetTier)
		})

		// App management (X-App-Secret)
		r.Route("/apps/{id}", func(r chi.Router) {
			r.Get("/", appH.Get)
			r.Post("/provision-user", appH.ProvisionUser)
			r.Post("/rotate-secret", appH.RotateAppSecret)
			r.Post("/rotate-jwt-secret", appH.RotateJWTSecret)
			r.Post("/status", appH.SetStatus)
		})

		// Chat-owner management (X-Chat-Key)
		r.Route("/chats/{chatID}", func(r chi.Router) {
			r.Post("/apps", chatH.CreateApp)
			r.Post("/keys", chatH.CreateKey)
			r.Get("/keys", chatH.ListKeys)
			r.Delete("/keys/{keyID}", chatH.RevokeKey)
		})

		// Admin (allow-listed subjects only)
		r.With(requireUser, requireAdmin).Get("/admin/audit", adminH.AuditLogs)
	})

	return r
}
