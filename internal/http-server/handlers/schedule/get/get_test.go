package get_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"drive-schedule-service/api"
	"drive-schedule-service/internal/http-server/handlers/schedule/get"
	"drive-schedule-service/internal/service"
	"drive-schedule-service/pkg/response"
)

type fakeProvider struct {
	listCalled bool
	filters    *service.BookingFilters
}

func (f *fakeProvider) GetBooking(ctx context.Context, id string) (*api.BookingResponse, error) {
	return nil, response.ErrNotFound
}

func (f *fakeProvider) ListBookings(ctx context.Context, filters *service.BookingFilters) ([]api.BookingResponse, error) {
	f.listCalled = true
	f.filters = filters
	return []api.BookingResponse{{ID: "b1", Status: "scheduled"}}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestListBookings(t *testing.T) {
	provider := &fakeProvider{}
	handler := get.New(discardLogger(), provider)

	req := httptest.NewRequest(http.MethodGet, "/schedule?instructor_id=instr-1&start_date=2024-06-01&end_date=2024-06-30", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, provider.listCalled)
	require.NotNil(t, provider.filters.From)
	require.NotNil(t, provider.filters.To)
	assert.Equal(t, "2024-06-01", provider.filters.From.Format("2006-01-02"))
	assert.Equal(t, "2024-06-30", provider.filters.To.Format("2006-01-02"))
}

func TestListBookingsRejectsMalformedDates(t *testing.T) {
	for _, query := range []string{
		"start_date=not-a-date",
		"end_date=2024-13-45",
		"start_date=2024-06-01&end_date=june",
	} {
		provider := &fakeProvider{}
		handler := get.New(discardLogger(), provider)

		req := httptest.NewRequest(http.MethodGet, "/schedule?"+query, nil)
		rr := httptest.NewRecorder()

		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code, query)
		assert.False(t, provider.listCalled, query)
	}
}
