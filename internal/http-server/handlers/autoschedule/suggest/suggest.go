package suggest

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

type Suggester interface {
	Suggest(ctx context.Context, req *api.AutoScheduleRequest) (*api.AutoScheduleResponse, error)
}

type Request struct {
	api.AutoScheduleRequest
}

type Response struct {
	response.Response
	api.AutoScheduleResponse
}

func New(log *slog.Logger, suggester Suggester) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.autoschedule.suggest.New"

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

		result, err := suggester.Suggest(r.Context(), &req.AutoScheduleRequest)

		if errors.Is(err, response.ErrValidation) {
			log.Error("validation failed", sl.Err(err))
			w.WriteHeader(http.StatusBadRequest)
			render.JSON(w, r, response.Error(string(response.VALIDATION_FAILED), err.Error()))
			return
		}

		if err != nil {
			log.Error("Failed to build suggestions", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to build suggestions"))
			return
		}

		log.Info("Suggestions built", slog.Int("count", len(result.Suggestions)))

		render.JSON(w, r, Response{
			AutoScheduleResponse: *result,
		})
	}
}
