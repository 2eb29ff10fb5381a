package create

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"drive-schedule-service/api"
	"drive-schedule-service/pkg/response"
	"drive-schedule-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type SlotCreator interface {
	CreateSlots(ctx context.Context, reqs []api.TimeSlotRequest) ([]api.TimeSlotResponse, error)
}

type Response struct {
	response.Response
	Slots []api.TimeSlotResponse `json:"slots,omitempty"`
}

// New accepts a single slot object or an array of slots in one request.
func New(log *slog.Logger, creator SlotCreator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.availability.create.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		body, err := io.ReadAll(r.Body)
		if err != nil {
			log.Error("Failed to read request body", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "failed to read request"))
			return
		}

		var reqs []api.TimeSlotRequest
		if err := json.Unmarshal(body, &reqs); err != nil {
			var single api.TimeSlotRequest
			if err := json.Unmarshal(body, &single); err != nil {
				log.Error("Failed to decode request body", sl.Err(err))
				w.WriteHeader(http.StatusBadRequest)
				render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "failed to decode request"))
				return
			}
			reqs = []api.TimeSlotRequest{single}
		}

		log.Info("Request body decoded", slog.Int("slots", len(reqs)))

		slots, err := creator.CreateSlots(r.Context(), reqs)

		if errors.Is(err, response.ErrValidation) {
			log.Error("validation failed", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.VALIDATION_FAILED), err.Error()))
			return
		}

		if errors.Is(err, response.ErrLocked) {
			log.Error("resource is locked")
			w.WriteHeader(http.StatusLocked)
			render.JSON(w, r, response.Error(string(response.LOCKED), "resource is locked"))
			return
		}

		if err != nil {
			log.Error("Failed to create slots", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to create slots"))
			return
		}

		log.Info("Slots created", slog.Int("count", len(slots)))

		w.WriteHeader(http.StatusCreated)
		render.JSON(w, r, Response{
			Slots: slots,
		})
	}
}
