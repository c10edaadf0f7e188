package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/neuralforge/platform/pkg/account"
	"github.com/neuralforge/platform/pkg/common/models"
	"github.com/neuralforge/platform/pkg/events"
	"github.com/neuralforge/platform/pkg/forge"
	"github.com/neuralforge/platform/pkg/roles"
)

type RoleHandler struct {
	engine *forge.Engine
}

func NewRoleHandler(engine *forge.Engine) *RoleHandler {
	return &RoleHandler{engine: engine}
}

func (h *RoleHandler) Register(r *mux.Router) {
	r.HandleFunc("/roles/{role}", h.handleMembers).Methods(http.MethodGet)
	r.HandleFunc("/roles/{role}/grant", h.handleGrant).Methods(http.MethodPost)
	r.HandleFunc("/roles/{role}/revoke", h.handleRevoke).Methods(http.MethodPost)
	r.HandleFunc("/roles/{role}/renounce", h.handleRenounce).Methods(http.MethodPost)
}

func (h *RoleHandler) role(w http.ResponseWriter, r *http.Request) (roles.Role, bool) {
	role, err := roles.Parse(mux.Vars(r)["role"])
	if err != nil {
		writeError(w, err)
		return "", false
	}
	return role, true
}

func (h *RoleHandler) handleMembers(w http.ResponseWriter, r *http.Request) {
	role, ok := h.role(w, r)
	if !ok {
		return
	}
	members := h.engine.Members(role)
	out := models.RoleMembers{Role: string(role), Members: make([]string, 0, len(members))}
	for _, m := range members {
		out.Members = append(out.Members, m.String())
	}
	writeJSON(w, out)
}

func (h *RoleHandler) handleGrant(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, "grantRole", h.engine.GrantRole)
}

func (h *RoleHandler) handleRevoke(w http.ResponseWriter, r *http.Request) {
	h.change(w, r, "revokeRole", h.engine.RevokeRole)
}

func (h *RoleHandler) change(w http.ResponseWriter, r *http.Request, op string, apply func(caller account.Account, role roles.Role, a account.Account) ([]events.Record, error)) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	role, ok := h.role(w, r)
	if !ok {
		return
	}
	var req models.RoleRequest
	if !decode(w, r, op, &req) {
		return
	}
	target, ok := parseAccount(w, op, req.Account)
	if !ok {
		return
	}
	recs, err := apply(caller, role, target)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, receipt(recs, nil))
}

func (h *RoleHandler) handleRenounce(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	role, ok := h.role(w, r)
	if !ok {
		return
	}
	recs, err := h.engine.RenounceRole(caller, role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, receipt(recs, nil))
}
