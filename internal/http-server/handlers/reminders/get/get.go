package get

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"drive-schedule-service/api"
	"drive-schedule-service/pkg/response"
	"drive-schedule-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type ReminderLister interface {
	ListReminders(ctx context.Context, bookingID string) ([]api.ReminderResponse, error)
}

type Response struct {
	response.Response
	Reminders []api.ReminderResponse `json:"reminders"`
}

func New(log *slog.Logger, lister ReminderLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.reminders.get.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		id := chi.URLParam(r, "id")
		if id == "" {
			log.Error("id is empty")
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "id is required"))
			return
		}

		reminders, err := lister.ListReminders(r.Context(), id)

		if errors.Is(err, response.ErrNotFound) {
			log.Error("resource not found")
			w.WriteHeader(http.StatusNotFound)
			render.JSON(w, r, response.Error(string(response.NOT_FOUND), "resource not found"))
			return
		}

		if err != nil {
			log.Error("Failed to list reminders", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to list reminders"))
			return
		}

		log.Info("Reminders retrieved", slog.Int("count", len(reminders)))

		render.JSON(w, r, Response{
			Reminders: reminders,
		})
	}
}
