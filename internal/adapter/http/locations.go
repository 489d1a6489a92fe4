package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-chi/chi/v5"

	"github.com/couchcryptid/wildfire-feature-store/internal/domain"
	"github.com/couchcryptid/wildfire-feature-store/internal/history"
)

const maxObservationBytes = 64 << 10

// FeatureStore is the history store as seen by the API.
// *history.Store implements it.
type FeatureStore interface {
	Update(ctx context.Context, key string, obs domain.Observation) ([]domain.Record, error)
	History(ctx context.Context, key string) ([]domain.Record, error)
}

// historyResponse is the body of both location endpoints.
type historyResponse struct {
	Location string          `json:"location"`
	Latest   domain.Record   `json:"latest"`
	History  []domain.Record `json:"history"`
}

type locationHandler struct {
	store  FeatureStore
	logger *slog.Logger
}

func newLocationRoutes(store FeatureStore, logger *slog.Logger) http.Handler {
	h := &locationHandler{store: store, logger: logger}

	r := chi.NewRouter()
	r.Post("/{location}/observations", h.appendObservation)
	r.Get("/{location}/history", h.getHistory)
	return r
}

func (h *locationHandler) appendObservation(w http.ResponseWriter, r *http.Request) {
	location := locationParam(r)

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxObservationBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err)
		return
	}

	obs, err := domain.ParseObservation(data)
	if err != nil {
		h.writeStoreError(w, location, err)
		return
	}

	records, err := h.store.Update(r.Context(), location, obs)
	if err != nil {
		h.writeStoreError(w, location, err)
		return
	}

	h.writeHistory(w, location, records)
}

func (h *locationHandler) getHistory(w http.ResponseWriter, r *http.Request) {
	location := locationParam(r)

	records, err := h.store.History(r.Context(), location)
	if err != nil {
		h.writeStoreError(w, location, err)
		return
	}

	h.writeHistory(w, location, records)
}

// writeHistory encodes the response before writing the status, so an
// unencodable window is a 500 rather than a 200 with an empty body.
func (h *locationHandler) writeHistory(w http.ResponseWriter, location string, records []domain.Record) {
	body, err := json.Marshal(newHistoryResponse(location, records))
	if err != nil {
		h.logger.Error("encode history response failed", "location", location, "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(append(body, '\n')) //nolint:errcheck // client gone
}

// writeStoreError maps domain and store errors to HTTP status codes.
func (h *locationHandler) writeStoreError(w http.ResponseWriter, location string, err error) {
	switch {
	case errors.Is(err, domain.ErrIncompleteObservation), errors.Is(err, domain.ErrInvalidCalendar):
		writeError(w, http.StatusUnprocessableEntity, err)
	case errors.Is(err, domain.ErrMalformedObservation):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, history.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, history.ErrCorrupted):
		h.logger.Error("history store corrupted", "location", location, "error", err)
		writeError(w, http.StatusInternalServerError, history.ErrCorrupted)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, err)
	default:
		h.logger.Error("history update failed", "location", location, "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}

func newHistoryResponse(location string, records []domain.Record) historyResponse {
	return historyResponse{
		Location: location,
		Latest:   records[len(records)-1],
		History:  records,
	}
}

func locationParam(r *http.Request) string {
	raw := chi.URLParam(r, "location")
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

func writeError(w http.ResponseWriter, status int, err error) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": err.Error()})
}
