package api

import (
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/okian/aidfeed/internal/domain/model"
)

// ListingsHandler handles listing reads.
type ListingsHandler struct {
	deps    ListingsReader
	limiter *rate.Limiter
}

// NewListingsHandler creates a new listings handler. Forced refreshes hit
// every upstream, so they share one limiter; a nil limiter disables the cap.
func NewListingsHandler(deps ListingsReader, limiter *rate.Limiter) *ListingsHandler {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}
	return &ListingsHandler{deps: deps, limiter: limiter}
}

type listingsResponse struct {
	Listings []model.Listing `json:"listings"`
	Count    int             `json:"count"`
}

// HandleGetListings handles GET /listings?region=&category=&refresh=true.
func (h *ListingsHandler) HandleGetListings(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_listings"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	q := r.URL.Query()
	region := strings.TrimSpace(q.Get("region"))
	category := strings.TrimSpace(q.Get("category"))

	refresh := false
	if raw := q.Get("refresh"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_refresh", WrapKind(op, ErrBadRequest, err))
			return
		}
		refresh = v
	}

	var listings []model.Listing
	if refresh {
		if !h.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "rate_limited", NewKind(op, ErrRateLimited))
			return
		}
		ls, err := h.deps.Refresh(r.Context(), model.NewKey(region, category), false)
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
			return
		}
		listings = ls
	} else {
		listings = h.deps.GetListings(r.Context(), region, category)
	}
	if listings == nil {
		listings = []model.Listing{}
	}
	writeJSON(w, http.StatusOK, listingsResponse{Listings: listings, Count: len(listings)})
}
