package sweep

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"drive-schedule-service/api"
	"drive-schedule-service/pkg/response"
	"drive-schedule-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type Sweeper interface {
	SweepReminders(ctx context.Context) (*api.SweepResponse, error)
}

type Response struct {
	response.Response
	api.SweepResponse
}

// New is the cron-triggered sweep endpoint, authenticated by a shared
// bearer secret. An empty configured secret disables the endpoint.
// Idempotent per invocation: re-running a sweep never double-sends.
func New(log *slog.Logger, sweeper Sweeper, secret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.reminders.sweep.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if secret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			log.Error("sweep auth failed")
			w.WriteHeader(http.StatusUnauthorized)
			render.JSON(w, r, response.Error(string(response.UNAUTHORIZED), "invalid sweep token"))
			return
		}

		result, err := sweeper.SweepReminders(r.Context())

		if err != nil {
			log.Error("Sweep failed", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "sweep failed"))
			return
		}

		log.Info("Sweep completed",
			slog.Int("due", result.Due),
			slog.Int("sent", result.Sent),
			slog.Int("failed", result.Failed),
		)

		render.JSON(w, r, Response{
			SweepResponse: *result,
		})
	}
}
