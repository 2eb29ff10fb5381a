package get

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"drive-schedule-service/api"
	"drive-schedule-service/pkg/response"
	"drive-schedule-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type AvailabilityProvider interface {
	GetAvailability(ctx context.Context, instructorID string, from, to time.Time) ([]api.AvailabilitySlot, error)
}

type Response struct {
	response.Response
	Availability []api.AvailabilitySlot `json:"availability"`
}

func New(log *slog.Logger, provider AvailabilityProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.availability.get.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		instructorID := r.URL.Query().Get("instructor_id")
		if instructorID == "" {
			log.Error("instructor_id is empty")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "instructor_id is required"))
			return
		}

		from, err := time.Parse("2006-01-02", r.URL.Query().Get("start_date"))
		if err != nil {
			log.Error("invalid start_date", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.VALIDATION_FAILED), "invalid start_date"))
			return
		}

		to, err := time.Parse("2006-01-02", r.URL.Query().Get("end_date"))
		if err != nil {
			log.Error("invalid end_date", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.VALIDATION_FAILED), "invalid end_date"))
			return
		}

		availability, err := provider.GetAvailability(r.Context(), instructorID, from, to)

		if errors.Is(err, response.ErrValidation) {
			log.Error("validation failed", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.VALIDATION_FAILED), "invalid date range"))
			return
		}

		if err != nil {
			log.Error("Failed to get availability", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to get availability"))
			return
		}

		log.Info("Availability retrieved", slog.Int("count", len(availability)))

		render.JSON(w, r, Response{
			Availability: availability,
		})
	}
}
