package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter 注册所有路由。gatherer 为 nil 时不暴露 /metrics
func NewRouter(h *APIHandler, gatherer prometheus.Gatherer) *mux.Router {
	router := mux.NewRouter()

	// 添加 CORS 中间件
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	})

	// 命令与队列
	router.HandleFunc("/api/commands", h.ListCommandsHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/tenants/{tenant}/commands/{name}", h.AuthMiddleware(h.CommandHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/tenants/{tenant}/queue", h.AuthMiddleware(h.QueueHandler)).Methods(http.MethodGet)

	// 通知频道订阅
	router.HandleFunc("/ws/tenants/{tenant}/channels/{target}", h.AuthMiddleware(h.ChannelWebSocketHandler))

	router.HandleFunc("/health", h.HealthHandler).Methods(http.MethodGet)
	if gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	return router
}
