package http

import (
	"net/http"

	"github.com/go-chi/chi"
)

// NewRouter wires all API routes onto a chi mux.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Get("/health", h.health)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.createSession)
			r.Get("/{code}", h.lobby)
			r.Post("/{code}/join", h.joinSession)

			r.Route("/{sessionID:[0-9]+}", func(r chi.Router) {
				r.Post("/start", h.startSession)
				r.Post("/answers", h.recordAnswer)
				r.Post("/players/{playerID}/finish", h.finishPlayer)
				r.Get("/results", h.results)
			})
		})

		r.Route("/questions", func(r chi.Router) {
			r.Get("/", h.listQuestions)
			r.Get("/random", h.randomQuestions)
			r.Post("/", h.createQuestion)
			r.Put("/{questionID}", h.updateQuestion)
			r.Delete("/{questionID}", h.deleteQuestion)
		})

		r.Get("/leaderboard", h.globalLeaderboard)
	})

	return r
}

func urlParam(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}
