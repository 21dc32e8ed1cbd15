// Package middlewares содержит промежуточные обработчики HTTP-запросов:
// сжатие Gzip, определение адреса клиента за доверенными прокси, доступ по
// доверенной подсети, проверку bearer-токенов и ролей.
package middlewares

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/sol1corejz/imgify/cmd/gzip"
	"github.com/sol1corejz/imgify/internal/apperrors"
	"github.com/sol1corejz/imgify/internal/auth"
	"github.com/sol1corejz/imgify/internal/logger"
	"github.com/sol1corejz/imgify/internal/models"
)

// GzipMiddleware сжимает ответ, если клиент поддерживает gzip, и распаковывает
// тело запроса, если оно пришло сжатым.
func GzipMiddleware(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ow := w

		// Проверяем, поддерживает ли клиент сжатие Gzip.
		if strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			cw := gzip.NewCompressWriter(w)
			ow = cw
			defer cw.Close()
		}

		// Проверяем, сжаты ли данные в запросе.
		if strings.Contains(r.Header.Get("Content-Encoding"), "gzip") {
			cr, err := gzip.NewCompressReader(r.Body)
			if err != nil {
				writeError(w, http.StatusBadRequest, models.ErrorResponse{
					Error:   string(apperrors.KindValidation),
					Message: "request body is not valid gzip",
				})
				return
			}
			r.Body = cr
			defer cr.Close()
		}

		h.ServeHTTP(ow, r)
	})
}

// TrustedSubnetMiddleware пропускает только клиентов из доверенной подсети.
// Пустая или некорректная подсеть запрещает доступ всем.
func TrustedSubnetMiddleware(subnet string) func(http.Handler) http.Handler {
	// Парсим подсеть на этапе создания middleware.
	_, trustedNet, err := net.ParseCIDR(subnet)

	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err != nil {
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			ip := net.ParseIP(ClientIP(r))
			if ip == nil || !trustedNet.Contains(ip) {
				logger.Log.Info("untrusted client", zap.String("ip", ClientIP(r)), zap.String("path", r.URL.Path))
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}

			h.ServeHTTP(w, r)
		})
	}
}

// Authenticate проверяет заголовок Authorization: Bearer <token>, если он есть,
// и кладёт утверждения токена в контекст. Запрос без заголовка проходит как
// гостевой, недействительный токен даёт 401.
func Authenticate(tokens *auth.Tokens) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				h.ServeHTTP(w, r)
				return
			}

			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				unauthorized(w, "malformed authorization header")
				return
			}

			claims, err := tokens.Parse(strings.TrimSpace(token))
			if err != nil {
				logger.Log.Info("invalid token", zap.String("path", r.URL.Path), zap.Error(err))
				unauthorized(w, "invalid or expired token")
				return
			}

			h.ServeHTTP(w, r.WithContext(auth.WithClaims(r.Context(), claims)))
		})
	}
}

// RequireAuth отклоняет запросы без проверенного токена.
func RequireAuth(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.FromContext(r.Context()); !ok {
			unauthorized(w, "authentication required")
			return
		}
		h.ServeHTTP(w, r)
	})
}

// RequireRole пропускает только пользователей с ролью role.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := auth.FromContext(r.Context())
			if !ok {
				unauthorized(w, "authentication required")
				return
			}
			if claims.Role != role {
				writeError(w, http.StatusForbidden, models.ErrorResponse{
					Error:   "forbidden",
					Message: "insufficient role",
				})
				return
			}
			h.ServeHTTP(w, r)
		})
	}
}

// RealIP подставляет в RemoteAddr адрес клиента из X-Forwarded-For или X-Real-IP,
// но только если соединение пришло от доверенного прокси из proxies (CIDR или
// отдельные адреса). От остальных клиентов заголовки игнорируются.
func RealIP(proxies []string) func(http.Handler) http.Handler {
	nets := parseNets(proxies)

	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(nets) > 0 && containsIP(nets, net.ParseIP(ClientIP(r))) {
				if ip := forwardedClient(r, nets); ip != "" {
					r.RemoteAddr = ip
				}
			}
			h.ServeHTTP(w, r)
		})
	}
}

// forwardedClient разбирает X-Forwarded-For справа налево и возвращает первый
// адрес, не принадлежащий доверенным прокси. Левые записи задаёт сам клиент,
// поэтому им верить нельзя.
func forwardedClient(r *http.Request, nets []*net.IPNet) string {
	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		var leftmost string
		for i := len(hops) - 1; i >= 0; i-- {
			ip := net.ParseIP(strings.TrimSpace(hops[i]))
			if ip == nil {
				return ""
			}
			if !containsIP(nets, ip) {
				return ip.String()
			}
			leftmost = ip.String()
		}
		return leftmost
	}
	if ip := net.ParseIP(strings.TrimSpace(r.Header.Get("X-Real-IP"))); ip != nil {
		return ip.String()
	}
	return ""
}

func parseNets(list []string) []*net.IPNet {
	var nets []*net.IPNet
	for _, raw := range list {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "/") {
			if ip := net.ParseIP(raw); ip != nil {
				bits := 8 * net.IPv6len
				if ip4 := ip.To4(); ip4 != nil {
					ip, bits = ip4, 8*net.IPv4len
				}
				nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
				continue
			}
		}
		_, n, err := net.ParseCIDR(raw)
		if err != nil {
			logger.Log.Warn("ignoring invalid trusted proxy", zap.String("value", raw))
			continue
		}
		nets = append(nets, n)
	}
	return nets
}

func containsIP(nets []*net.IPNet, ip net.IP) bool {
	if ip == nil {
		return false
	}
	for _, n := range nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP возвращает IP клиента из RemoteAddr. Адрес из заголовков прокси
// попадает туда только через RealIP.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="imgify"`)
	writeError(w, http.StatusUnauthorized, models.ErrorResponse{
		Error:   string(apperrors.KindAuth),
		Message: message,
	})
}

func writeError(w http.ResponseWriter, status int, body models.ErrorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Log.Error("Failed to encode response", zap.Error(err))
	}
}
