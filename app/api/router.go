package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the handler onto the Go 1.22+ method/path mux. Poll
// management endpoints require a teacher token; the answer path and reads
// stay open so students join with nothing but a name.
func NewRouter(h *Handler, gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	log := h.Log

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	if gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	mux.HandleFunc("POST /api/v1/auth/signup", WithLogging(log, h.SignUp))
	mux.HandleFunc("POST /api/v1/auth/signin", WithLogging(log, h.SignIn))

	mux.HandleFunc("POST /api/v1/polls/create", WithLogging(log, RequireAuth(h.Auth, h.CreatePoll)))
	mux.HandleFunc("GET /api/v1/polls/current", WithLogging(log, h.GetCurrentPoll))
	mux.HandleFunc("POST /api/v1/polls/answer", WithLogging(log, h.SubmitAnswer))
	mux.HandleFunc("GET /api/v1/polls/history", WithLogging(log, RequireAuth(h.Auth, h.GetHistory)))
	mux.HandleFunc("GET /api/v1/polls/{pollId}/results", WithLogging(log, h.GetPollResults))
	mux.HandleFunc("PUT /api/v1/polls/{pollId}/close", WithLogging(log, RequireAuth(h.Auth, h.ClosePoll)))
	mux.HandleFunc("DELETE /api/v1/polls/{pollId}/kickout/{studentName}", WithLogging(log, RequireAuth(h.Auth, h.KickOutStudent)))

	mux.HandleFunc("GET /ws", h.ServeWS)

	return CORS(mux)
}
