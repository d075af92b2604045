package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dvins/queuepulse-data/internal/api/respond"
	"github.com/dvins/queuepulse-data/internal/cache"
)

type parkItem struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Abbreviation  string `json:"abbreviation"`
	ExternalAPIID int    `json:"external_api_id"`
}

type attractionItem struct {
	ID            int        `json:"id"`
	Name          string     `json:"name"`
	ExternalAPIID int        `json:"external_api_id"`
	WaitMinutes   *int       `json:"wait_minutes"`
	Status        *string    `json:"status"`
	Trend         *string    `json:"trend"`
	FetchedAt     *time.Time `json:"fetched_at"`
}

type listResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Count   int         `json:"count"`
}

// GetParks lists all tracked parks.
// @Summary List parks
// @Tags parks
// @Produce json
// @Success 200 {object} handler.listResponse
// @Router /parks [get]
func (h *Handler) GetParks(w http.ResponseWriter, r *http.Request) {
	h.serveCached(w, r, "parks", cache.TTLParks, func() ([]byte, error) {
		rows, err := h.pool.Query(r.Context(), "list_active_parks")
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		parks := make([]parkItem, 0)
		for rows.Next() {
			var p parkItem
			if err := rows.Scan(&p.ID, &p.Name, &p.Abbreviation, &p.ExternalAPIID); err != nil {
				return nil, err
			}
			parks = append(parks, p)
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return json.Marshal(listResponse{Success: true, Data: parks, Count: len(parks)})
	})
}

// GetParkAttractions lists a park's attractions with their latest wait times.
// @Summary List park attractions with current wait times
// @Tags parks
// @Produce json
// @Param parkID path int true "Park ID"
// @Success 200 {object} handler.listResponse
// @Failure 400 {object} respond.ErrorResponse
// @Router /parks/{parkID}/attractions [get]
func (h *Handler) GetParkAttractions(w http.ResponseWriter, r *http.Request) {
	parkID, err := strconv.Atoi(chi.URLParam(r, "parkID"))
	if err != nil {
		respond.WriteError(w, http.StatusBadRequest, "INVALID_PARK_ID", "Park ID must be an integer")
		return
	}

	key := "park_attractions:" + strconv.Itoa(parkID)
	h.serveCached(w, r, key, cache.TTLWaitTimes, func() ([]byte, error) {
		rows, err := h.pool.Query(r.Context(), "park_attractions_with_waits", parkID)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		attractions := make([]attractionItem, 0)
		for rows.Next() {
			var a attractionItem
			if err := rows.Scan(
				&a.ID, &a.Name, &a.ExternalAPIID,
				&a.WaitMinutes, &a.Status, &a.Trend, &a.FetchedAt,
			); err != nil {
				return nil, err
			}
			attractions = append(attractions, a)
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return json.Marshal(listResponse{Success: true, Data: attractions, Count: len(attractions)})
	})
}

// serveCached answers from the in-memory cache when possible, honoring
// If-None-Match, and falls back to build on a miss.
func (h *Handler) serveCached(w http.ResponseWriter, r *http.Request, key string, ttl time.Duration, build func() ([]byte, error)) {
	ifNoneMatch := r.Header.Get("If-None-Match")

	if data, etag, ok := h.cache.Get(key); ok {
		if cache.CheckETagMatch(ifNoneMatch, etag) {
			respond.WriteNotModified(w, etag)
			return
		}
		respond.WriteJSON(w, data, etag, ttl, true)
		return
	}

	data, err := build()
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "QUERY_FAILED", "Database query failed")
		return
	}

	etag := h.cache.Set(key, data, ttl)
	if cache.CheckETagMatch(ifNoneMatch, etag) {
		respond.WriteNotModified(w, etag)
		return
	}
	respond.WriteJSON(w, data, etag, ttl, false)
}
