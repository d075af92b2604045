package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"

	"github.com/dvins/queuepulse-data/internal/api/respond"
	"github.com/dvins/queuepulse-data/internal/cache"
)

type attractionDetail struct {
	ID               int        `json:"id"`
	Name             string     `json:"name"`
	ExternalAPIID    int        `json:"external_api_id"`
	ParkName         string     `json:"park_name"`
	ParkAbbreviation string     `json:"park_abbreviation"`
	WaitMinutes      *int       `json:"wait_minutes"`
	Status           *string    `json:"status"`
	Trend            *string    `json:"trend"`
	FetchedAt        *time.Time `json:"fetched_at"`
}

type detailResponse struct {
	Success bool             `json:"success"`
	Data    attractionDetail `json:"data"`
}

// GetAttraction returns one attraction with its latest wait time.
// @Summary Attraction detail with current wait time
// @Tags attractions
// @Produce json
// @Param attractionID path int true "Attraction ID"
// @Success 200 {object} handler.detailResponse
// @Failure 404 {object} respond.ErrorResponse
// @Router /attractions/{attractionID} [get]
func (h *Handler) GetAttraction(w http.ResponseWriter, r *http.Request) {
	attractionID, err := strconv.Atoi(chi.URLParam(r, "attractionID"))
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_ATTRACTION_ID", "Attraction ID must be an integer")
		return
	}

	var detail attractionDetail
	err = h.pool.QueryRow(r.Context(), "attraction_detail", attractionID).Scan(
		&detail.ID, &detail.Name, &detail.ExternalAPIID,
		&detail.ParkName, &detail.ParkAbbreviation,
		&detail.WaitMinutes, &detail.Status, &detail.Trend, &detail.FetchedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		respond.WriteError(w, http.StatusNotFound, "NOT_FOUND", "Attraction not found")
		return
	}
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "QUERY_FAILED", "Database query failed")
		return
	}

	data, err := json.Marshal(detailResponse{Success: true, Data: detail})
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "ENCODE_FAILED", "Response encoding failed")
		return
	}
	respond.WriteJSON(w, data, cache.ComputeETag(data), cache.TTLWaitTimes, false)
}
