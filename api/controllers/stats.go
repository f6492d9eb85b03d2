package controllers

import (
	"net/http"

	"github.com/shopsterhq/shopster-backend/api/responses"
	"github.com/shopsterhq/shopster-backend/api/validators"
	"github.com/shopsterhq/shopster-backend/internal/stats"
	"github.com/shopsterhq/shopster-backend/pkg/logger"
)

// StatsOverview serves the staff dashboard aggregates over an optional
// placed_at window (`from`/`to` query parameters).
func StatsOverview(svc stats.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, err := validators.ParseQueryTime(r, "from")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		to, err := validators.ParseQueryTime(r, "to")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var window stats.Range
		if from != nil {
			window.From = *from
		}
		if to != nil {
			window.To = *to
		}

		overview, err := svc.Overview(r.Context(), window)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newStatsOverviewResponse(overview))
	}
}
