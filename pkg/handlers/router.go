package handlers

import (
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/sol1corejz/imgify/internal/auth"
	"github.com/sol1corejz/imgify/internal/logger"
	"github.com/sol1corejz/imgify/internal/middlewares"
)

// RouterOptions — настройки маршрутизатора, не относящиеся к обработчикам.
type RouterOptions struct {
	CORSOrigins []string

	// TrustedProxies — прокси, которым разрешено передавать адрес клиента в
	// X-Forwarded-For и X-Real-IP. Без них лимиты гостей считаются по адресу соединения.
	TrustedProxies []string
	// TrustedSubnet открывает /api/internal/stats для указанной подсети; пустое значение закрывает его.
	TrustedSubnet string
	EnablePprof   bool
}

// NewRouter собирает маршруты API.
//
// Маршруты:
// - "/api/optimize" (POST): пакетная оптимизация изображений.
// - "/api/convert" (POST): пакетная конвертация изображений.
// - "/api/login" (POST): вход и выдача токена.
// - "/api/contact" (POST): форма обратной связи.
// - "/api/formats" (GET): поддерживаемые форматы.
// - "/api/limits" (GET): текущие лимиты клиента.
// - "/api/me" (GET): данные пользователя, требуется токен.
// - "/api/admin/contacts" (GET): последние сообщения, требуется роль admin.
// - "/api/internal/stats" (GET): счётчики сервиса, только из доверенной подсети.
// - "/ping" (GET): проверка хранилища пользователей.
//
// Middleware:
// - RealIP: адрес клиента из заголовков, только от доверенных прокси.
// - RequestID и Recoverer из chi.
// - RequestLogger: логирование каждого входящего запроса.
// - CORS для браузерного клиента.
// - GzipMiddleware: сжатие ответов и распаковка запросов.
// - Authenticate: необязательный bearer-токен для /api.
func NewRouter(h *Handlers, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middlewares.RealIP(opts.TrustedProxies))
	r.Use(middleware.RequestID)
	r.Use(logger.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Encoding"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           int((12 * time.Hour).Seconds()),
	}))
	r.Use(middlewares.GzipMiddleware)

	if opts.EnablePprof {
		r.HandleFunc("/debug/pprof/*", pprof.Index)
		r.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		r.HandleFunc("/debug/pprof/profile", pprof.Profile)
		r.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		r.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	var tokens *auth.Tokens
	if h.deps.Auth != nil {
		tokens = h.deps.Auth.Tokens()
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", h.HandleLogin)
		r.Post("/contact", h.HandleContact)
		r.Get("/formats", h.HandleFormats)

		r.Group(func(r chi.Router) {
			r.Use(middlewares.Authenticate(tokens))

			r.Post("/optimize", h.HandleOptimize)
			r.Post("/convert", h.HandleConvert)
			r.Get("/limits", h.HandleLimits)

			r.With(middlewares.RequireAuth).Get("/me", h.HandleMe)
			r.With(middlewares.RequireRole(auth.RoleAdmin)).Get("/admin/contacts", h.HandleAdminContacts)
		})

		r.With(middlewares.TrustedSubnetMiddleware(opts.TrustedSubnet)).Get("/internal/stats", h.HandleGetInternalStats)
	})

	r.Get("/ping", h.HandlePing)

	return r
}
