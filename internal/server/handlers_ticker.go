package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/tickerwell/fincollect/internal/models"
)

// routeTicker dispatches /ticker/{ticker} and /ticker/{ticker}/date/{date}
// to the appropriate guarded handler.
func (s *Server) routeTicker(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/ticker/")
	if path == "" {
		WriteError(w, http.StatusBadRequest, "ticker is required in path")
		return
	}

	if idx := strings.Index(path, "/date/"); idx >= 0 {
		ticker := path[:idx]
		dateStr := path[idx+len("/date/"):]
		s.requireBearer(func(w http.ResponseWriter, r *http.Request) {
			s.handleTickerByDate(w, r, ticker, dateStr)
		})(w, r)
		return
	}

	if strings.Contains(path, "/") {
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}

	s.requireAPIKey(func(w http.ResponseWriter, r *http.Request) {
		s.handleTicker(w, r, path)
	})(w, r)
}

// handleTicker handles GET /ticker/{ticker} (API-key gated).
// Optional query parameters: date (YYYY-MM-DD) and country override.
func (s *Server) handleTicker(w http.ResponseWriter, r *http.Request, ticker string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	var specificDate *time.Time
	if dateStr := r.URL.Query().Get("date"); dateStr != "" {
		d, err := time.Parse(models.DateLayout, dateStr)
		if err != nil {
			WriteError(w, http.StatusUnprocessableEntity, "Invalid date: "+dateStr)
			return
		}
		specificDate = &d
	}

	s.fetchAndRespond(w, r, ticker, specificDate)
}

// handleTickerByDate handles GET /ticker/{ticker}/date/{date} (bearer gated).
// A malformed path date is rejected before the gateway is reached.
func (s *Server) handleTickerByDate(w http.ResponseWriter, r *http.Request, ticker, dateStr string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	d, err := time.Parse(models.DateLayout, dateStr)
	if err != nil {
		WriteError(w, http.StatusUnprocessableEntity, "Invalid date: "+dateStr)
		return
	}

	s.fetchAndRespond(w, r, ticker, &d)
}

// fetchAndRespond runs the gateway fetch and writes the response. Provider
// failures of any kind surface as 500 with the underlying message embedded.
func (s *Server) fetchAndRespond(w http.ResponseWriter, r *http.Request, ticker string, specificDate *time.Time) {
	country := r.URL.Query().Get("country")

	resp, err := s.app.Market.FetchHistorical(r.Context(), ticker, specificDate, country)
	if err != nil {
		s.logger.Error().Err(err).Str("ticker", ticker).Msg("Market data fetch failed")
		WriteError(w, http.StatusInternalServerError, "Error fetching data: "+err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, resp)
}
