package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/holiman/uint256"
	"github.com/neuralforge/platform/pkg/account"
	"github.com/neuralforge/platform/pkg/common/failure"
	"github.com/neuralforge/platform/pkg/common/models"
	"github.com/neuralforge/platform/pkg/forge"
	"github.com/neuralforge/platform/pkg/ledger"
)

type TokenHandler struct {
	engine *forge.Engine
}

func NewTokenHandler(engine *forge.Engine) *TokenHandler {
	return &TokenHandler{engine: engine}
}

func (h *TokenHandler) Register(r *mux.Router) {
	r.HandleFunc("/token", h.handleInfo).Methods(http.MethodGet)
	r.HandleFunc("/balances/{account}", h.handleBalance).Methods(http.MethodGet)
	r.HandleFunc("/allowances/{owner}/{spender}", h.handleAllowance).Methods(http.MethodGet)
	r.HandleFunc("/mint", h.handleMint).Methods(http.MethodPost)
	r.HandleFunc("/transfer", h.handleTransfer).Methods(http.MethodPost)
	r.HandleFunc("/approve", h.handleApprove).Methods(http.MethodPost)
	r.HandleFunc("/transfer-from", h.handleTransferFrom).Methods(http.MethodPost)
}

func (h *TokenHandler) handleInfo(w http.ResponseWriter, r *http.Request) {
	info := h.engine.TokenInfo()
	writeJSON(w, models.TokenInfo{
		Name:               info.Name,
		Symbol:             info.Symbol,
		Decimals:           int(info.Decimals),
		TotalSupply:        amount(info.TotalSupply),
		Holders:            info.Holders,
		MarketplaceAccount: h.engine.MarketplaceAccount().String(),
		TrainingAccount:    h.engine.TrainingAccount().String(),
	})
}

func (h *TokenHandler) handleBalance(w http.ResponseWriter, r *http.Request) {
	a, ok := pathAccount(w, r, "balanceOf", "account")
	if !ok {
		return
	}
	writeJSON(w, models.BalanceResponse{Account: a.String(), Balance: amount(h.engine.BalanceOf(a))})
}

// Spender may be a module account, so it is only trimmed, not
// normalized.
func (h *TokenHandler) handleAllowance(w http.ResponseWriter, r *http.Request) {
	owner, ok := pathAccount(w, r, "allowance", "owner")
	if !ok {
		return
	}
	spender, ok := spenderAccount(w, "allowance", mux.Vars(r)["spender"], h.engine)
	if !ok {
		return
	}
	allowed := h.engine.Allowance(owner, spender)
	writeJSON(w, models.AllowanceResponse{
		Owner:     owner.String(),
		Spender:   spender.String(),
		Allowance: amount(allowed),
		Unlimited: allowed.Eq(ledger.Unlimited()),
	})
}

func (h *TokenHandler) handleMint(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req models.MintRequest
	if !decode(w, r, "mint", &req) {
		return
	}
	to, ok := parseAccount(w, "mint", req.To)
	if !ok {
		return
	}
	value, ok := parseAmount(w, "mint", req.Amount)
	if !ok {
		return
	}
	recs, err := h.engine.Mint(caller, to, value)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, receipt(recs, nil))
}

func (h *TokenHandler) handleTransfer(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req models.TransferRequest
	if !decode(w, r, "transfer", &req) {
		return
	}
	to, ok := parseAccount(w, "transfer", req.To)
	if !ok {
		return
	}
	value, ok := parseAmount(w, "transfer", req.Amount)
	if !ok {
		return
	}
	recs, err := h.engine.Transfer(caller, to, value)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, receipt(recs, nil))
}

func (h *TokenHandler) handleApprove(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req models.ApproveRequest
	if !decode(w, r, "approve", &req) {
		return
	}
	spender, ok := spenderAccount(w, "approve", req.Spender, h.engine)
	if !ok {
		return
	}
	var value *uint256.Int
	if req.Unlimited {
		value = ledger.Unlimited()
	} else if value, ok = parseAmount(w, "approve", req.Amount); !ok {
		return
	}
	recs, err := h.engine.Approve(caller, spender, value)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, receipt(recs, nil))
}

func (h *TokenHandler) handleTransferFrom(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var req models.TransferFromRequest
	if !decode(w, r, "transferFrom", &req) {
		return
	}
	from, ok := parseAccount(w, "transferFrom", req.From)
	if !ok {
		return
	}
	to, ok := parseAccount(w, "transferFrom", req.To)
	if !ok {
		return
	}
	value, ok := parseAmount(w, "transferFrom", req.Amount)
	if !ok {
		return
	}
	recs, err := h.engine.TransferFrom(caller, from, to, value)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, receipt(recs, nil))
}

// spenderAccount accepts a user address or one of the engine's module
// spender accounts.
func spenderAccount(w http.ResponseWriter, op, raw string, engine *forge.Engine) (account.Account, bool) {
	switch account.Account(raw) {
	case engine.MarketplaceAccount(), engine.TrainingAccount():
		return account.Account(raw), true
	}
	if account.Account(raw).IsModule() {
		badRequest(w, failure.ErrInvalidInput, op, "unknown module spender "+raw)
		return "", false
	}
	return parseAccount(w, op, raw)
}
