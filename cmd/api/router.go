package main

import (
	"crypto/subtle"
	"net/http"
	"net/http/pprof"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront-api/internal/auth"
	"github.com/noah-isme/storefront-api/internal/basket"
	"github.com/noah-isme/storefront-api/internal/checkout"
	"github.com/noah-isme/storefront-api/internal/common"
	"github.com/noah-isme/storefront-api/internal/config"
	"github.com/noah-isme/storefront-api/internal/coupon"
	"github.com/noah-isme/storefront-api/internal/health"
	"github.com/noah-isme/storefront-api/internal/obs"
	"github.com/noah-isme/storefront-api/internal/order"
	"github.com/noah-isme/storefront-api/internal/ratelimit"
	"github.com/noah-isme/storefront-api/internal/security"
)

type routerDeps struct {
	Config      *config.Config
	Logger      zerolog.Logger
	HTTPMetrics *obs.HTTPMetrics
	Auth        auth.Middleware
	Redis       *redis.Client
	Health      health.Handler
	Baskets     *basket.Handler
	Checkout    *checkout.Handler
	Orders      *order.Handler
	OrderAdmin  *order.AdminHandler
	Coupons     *coupon.Handler
	CouponLimit ratelimit.Getter
}

func newRouter(d routerDeps) http.Handler {
	cfg := d.Config
	idem := common.Idem{R: d.Redis, TTL: cfg.IdempotencyTTL}
	couponLimit := ratelimit.Handler{
		Limiter: d.CouponLimit,
		Key:     common.RequesterKey,
		Scope:   "coupon",
		OnError: func(err error) {
			d.Logger.Warn().Err(err).Msg("coupon rate limiter unavailable")
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	r.Use(obs.TracingMiddleware)
	r.Use(obs.HTTPObs{Metrics: d.HTTPMetrics}.Middleware)
	r.Use(d.Auth.Authenticate)
	r.Use(obs.RequestLogger{Logger: d.Logger}.Middleware)
	r.Use(security.Headers{Enable: cfg.SecurityHeaders, EnableHSTS: cfg.HSTSEnabled}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", common.IdempotencyHeader},
		ExposedHeaders:   []string{"X-Total-Count", "X-RateLimit-Remaining"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())
	if cfg.PprofEnabled {
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), cfg.PprofUser, cfg.PprofPass))
	}
	r.Get("/health/live", d.Health.Live)
	r.Get("/health/ready", d.Health.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Route("/baskets", func(b chi.Router) {
			b.Get("/{id}", d.Baskets.Get)
			b.Group(func(g chi.Router) {
				g.Use(idem.Middleware)
				g.Post("/", d.Baskets.Create)
				g.Post("/{id}/items", d.Baskets.AddItem)
				g.Patch("/{id}/items/{itemId}", d.Baskets.UpdateItem)
				g.Delete("/{id}/items/{itemId}", d.Baskets.RemoveItem)
				g.With(couponLimit.Middleware).Post("/{id}/coupon", d.Baskets.ApplyCoupon)
				g.Delete("/{id}/coupon", d.Baskets.RemoveCoupon)
				g.With(d.Auth.RequireAuth).Post("/{id}/checkout", d.Checkout.Checkout)
			})
		})

		v.Group(func(authR chi.Router) {
			authR.Use(d.Auth.RequireAuth)
			authR.Get("/orders", d.Orders.List)
			authR.Get("/orders/{id}", d.Orders.Get)
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(d.Auth.RequireAuth)
			admin.Use(auth.RequireRole(auth.RoleAdmin))
			admin.Post("/coupons", d.Coupons.Create)
			admin.Post("/coupons/preview", d.Coupons.Preview)
			admin.Patch("/orders/{id}/status", d.OrderAdmin.PatchStatus)
		})
	})
	return r
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
		mux.Handle("/"+name, pprof.Handler(name))
	}
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
