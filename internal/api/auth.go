package api

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"DotPilot/pkg/logger"
)

// auditWriter 捕获响应状态码。
type auditWriter struct {
	http.ResponseWriter
	status int
}

func (w *auditWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush 透传给底层 writer，MCP 的流式响应依赖它。
func (w *auditWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// requireToken 校验 Bearer 令牌并记录审计日志。未配置令牌时直接放行。
func (s *Server) requireToken(next http.Handler) http.Handler {
	if s.authToken == "" {
		return next
	}
	expected := []byte(s.authToken)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok || subtle.ConstantTimeCompare([]byte(token), expected) != 1 {
			logger.Audit().Warn("access_denied",
				"path", r.URL.Path,
				"method", r.Method,
				"status", http.StatusUnauthorized,
			)
			w.Header().Set("WWW-Authenticate", `Bearer realm="dotpilot"`)
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid bearer token")
			return
		}
		start := time.Now()
		aw := &auditWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(aw, r)
		logger.Audit().Info("api_request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", aw.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
