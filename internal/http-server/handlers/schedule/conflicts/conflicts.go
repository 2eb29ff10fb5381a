package conflicts

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"drive-schedule-service/api"
	"drive-schedule-service/pkg/response"
	"drive-schedule-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

type ConflictChecker interface {
	CheckConflicts(ctx context.Context, req *api.ConflictCheckRequest) (*api.ConflictCheckResponse, error)
}

type Request struct {
	api.ConflictCheckRequest
}

type Response struct {
	response.Response
	api.ConflictCheckResponse
}

func New(log *slog.Logger, checker ConflictChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.schedule.conflicts.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.BAD_REQUEST), "failed to decode request"))
			return
		}

		log.Info("Request body decoded", slog.Any("request", req))

		result, err := checker.CheckConflicts(r.Context(), &req.ConflictCheckRequest)

		if errors.Is(err, response.ErrValidation) {
			log.Error("validation failed", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.VALIDATION_FAILED), err.Error()))
			return
		}

		if err != nil {
			log.Error("Failed to check conflicts", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to check conflicts"))
			return
		}

		log.Info("Conflicts checked",
			slog.Bool("has_conflicts", result.HasConflicts),
			slog.Int("count", len(result.Conflicts)),
		)

		render.JSON(w, r, Response{
			ConflictCheckResponse: *result,
		})
	}
}
