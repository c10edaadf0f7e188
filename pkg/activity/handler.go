package activity

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/neuralforge/platform/pkg/account"
	"github.com/neuralforge/platform/pkg/api/routes"
	"github.com/neuralforge/platform/pkg/common/failure"
	"github.com/neuralforge/platform/pkg/common/logger"
	"github.com/neuralforge/platform/pkg/common/models"
)

// Reader is the read side of a Feed.
type Reader interface {
	Recent(ctx context.Context, a string, limit int) ([]models.ActivityEntry, error)
}

type Handler struct {
	feed Reader
}

func NewHandler(feed Reader) *Handler {
	return &Handler{feed: feed}
}

func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/accounts/{account}/activity", h.handleRecent).Methods(http.MethodGet)
}

func (h *Handler) handleRecent(w http.ResponseWriter, r *http.Request) {
	a, err := account.Normalize(mux.Vars(r)["account"])
	if err != nil {
		routes.WriteError(w, failure.New(failure.ErrInvalidInput, "activity", "%v", err))
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit < 0 {
			routes.WriteError(w, failure.New(failure.ErrInvalidInput, "activity", "limit must be a non-negative integer"))
			return
		}
	}
	entries, err := h.feed.Recent(r.Context(), a.String(), limit)
	if err != nil {
		logger.Log.WithError(err).WithField("account", a.String()).Error("failed to read activity")
		http.Error(w, "failed to read activity", http.StatusInternalServerError)
		return
	}
	routes.WriteJSON(w, entries)
}
