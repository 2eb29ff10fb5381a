package get

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"drive-schedule-service/api"
	"drive-schedule-service/internal/service"
	"drive-schedule-service/pkg/response"
	"drive-schedule-service/pkg/sl"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

type BookingProvider interface {
	GetBooking(ctx context.Context, id string) (*api.BookingResponse, error)
	ListBookings(ctx context.Context, filters *service.BookingFilters) ([]api.BookingResponse, error)
}

type Response struct {
	response.Response
	Bookings []api.BookingResponse `json:"bookings,omitempty"`
	Booking  *api.BookingResponse  `json:"booking,omitempty"`
}

func New(log *slog.Logger, provider BookingProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.schedule.get.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		if id := chi.URLParam(r, "id"); id != "" {
			booking, err := provider.GetBooking(r.Context(), id)

			if errors.Is(err, response.ErrNotFound) {
				log.Error("resource not found")
				w.WriteHeader(http.StatusNotFound)
				render.JSON(w, r, response.Error(string(response.NOT_FOUND), "resource not found"))
				return
			}

			if err != nil {
				log.Error("Failed to get booking", sl.Err(err))
				w.WriteHeader(http.StatusInternalServerError)
				render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to get booking"))
				return
			}

			log.Info("Booking retrieved", slog.Any("booking", booking))
			render.JSON(w, r, Response{Booking: booking})
			return
		}

		filters := &service.BookingFilters{}

		if instructorID := r.URL.Query().Get("instructor_id"); instructorID != "" {
			filters.InstructorID = &instructorID
		}

		if studentID := r.URL.Query().Get("student_id"); studentID != "" {
			filters.StudentID = &studentID
		}

		if fromStr := r.URL.Query().Get("start_date"); fromStr != "" {
			t, err := time.Parse("2006-01-02", fromStr)
			if err != nil {
				log.Error("invalid start_date", sl.Err(err))
				w.WriteHeader(http.StatusBadRequest)
				render.JSON(w, r, response.Error(string(response.VALIDATION_FAILED), "invalid start_date"))
				return
			}
			filters.From = &t
		}

		if toStr := r.URL.Query().Get("end_date"); toStr != "" {
			t, err := time.Parse("2006-01-02", toStr)
			if err != nil {
				log.Error("invalid end_date", sl.Err(err))
				w.WriteHeader(http.StatusBadRequest)
				render.JSON(w, r, response.Error(string(response.VALIDATION_FAILED), "invalid end_date"))
				return
			}
			filters.To = &t
		}

		if status := r.URL.Query().Get("status"); status != "" {
			filters.Status = &status
		}

		bookings, err := provider.ListBookings(r.Context(), filters)

		if err != nil {
			log.Error("Failed to list bookings", sl.Err(err))
			w.WriteHeader(http.StatusInternalServerError)
			render.JSON(w, r, response.Error(string(response.FAILED_REQUEST), "failed to list bookings"))
			return
		}

		log.Info("Bookings retrieved", slog.Int("count", len(bookings)))

		render.JSON(w, r, Response{
			Bookings: bookings,
		})
	}
}
