package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/neuralforge/platform/pkg/common/models"
	"github.com/neuralforge/platform/pkg/forge"
	"github.com/neuralforge/platform/pkg/marketplace"
)

type MarketplaceHandler struct {
	engine *forge.Engine
}

func NewMarketplaceHandler(engine *forge.Engine) *MarketplaceHandler {
	return &MarketplaceHandler{engine: engine}
}

func (h *MarketplaceHandler) Register(r *mux.Router) {
	r.HandleFunc("/models", h.handleList).Methods(http.MethodGet)
	r.HandleFunc("/models", h.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/models/{id}", h.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/models/{id}", h.handleUpdate).Methods(http.MethodPut)
	r.HandleFunc("/models/{id}/delist", h.handleDelist).Methods(http.MethodPost)
	r.HandleFunc("/models/{id}/buy", h.handleBuy).Methods(http.MethodPost)
	r.HandleFunc("/models/{id}/verify", h.handleVerify).Methods(http.MethodPost)
}

func listingView(l marketplace.Listing) models.ModelListing {
	return models.ModelListing{
		ID:                l.ID,
		Owner:             l.Owner.String(),
		OriginalCreator:   l.OriginalCreator.String(),
		ContentRef:        l.ContentRef,
		Price:             amount(&l.Price),
		IsForSale:         l.ForSale,
		IsVerified:        l.Verified,
		RoyaltyPercentage: int(l.RoyaltyPercentage),
		TotalSales:        l.TotalSales,
		ListedAt:          l.ListedAt,
		UpdatedAt:         l.UpdatedAt,
	}
}

// handleList supports ?for_sale=true to show only purchasable listings.
func (h *MarketplaceHandler) handleList(w http.ResponseWriter, r *http.Request) {
	onlyForSale := r.URL.Query().Get("for_sale") == "true"
	listings := h.engine.ListModels()
	out := make([]models.ModelListing, 0, len(listings))
	for _, l := range listings {
		if onlyForSale && !l.ForSale {
			continue
		}
		out = append(out, listingView(l))
	}
	writeJSON(w, out)
}

func (h *MarketplaceHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "getModelDetails")
	if !ok {
		return
	}
	l, err := h.engine.GetModelDetails(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, listingView(l))
}

func (h *MarketplaceHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req models.ListModelRequest
	if !decode(w, r, "listModel", &req) {
		return
	}
	price, ok := parseAmount(w, "listModel", req.Price)
	if !ok {
		return
	}
	id, recs, err := h.engine.ListModel(caller, req.ContentRef, price, req.RoyaltyPercentage)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, receipt(recs, &id))
}

func (h *MarketplaceHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "updateListing")
	if !ok {
		return
	}
	var req models.UpdateListingRequest
	if !decode(w, r, "updateListing", &req) {
		return
	}
	price, ok := parseAmount(w, "updateListing", req.Price)
	if !ok {
		return
	}
	recs, err := h.engine.UpdateListing(caller, id, price, req.ForSale)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, receipt(recs, &id))
}

func (h *MarketplaceHandler) handleDelist(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "delist")
	if !ok {
		return
	}
	recs, err := h.engine.Delist(caller, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, receipt(recs, &id))
}

func (h *MarketplaceHandler) handleBuy(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "buyModel")
	if !ok {
		return
	}
	recs, err := h.engine.BuyModel(caller, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, receipt(recs, &id))
}

func (h *MarketplaceHandler) handleVerify(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "setVerified")
	if !ok {
		return
	}
	var req models.VerifyModelRequest
	if !decode(w, r, "setVerified", &req) {
		return
	}
	recs, err := h.engine.SetVerified(caller, id, req.Verified)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, receipt(recs, &id))
}
