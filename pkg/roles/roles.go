// Package roles maps capability labels to the accounts holding them.
//
// ADMIN administers every role. The account that creates the registry
// is granted ADMIN; all later grants and revocations must come from an
// ADMIN holder.
package roles

import (
	"sort"

	"github.com/neuralforge/platform/pkg/account"
	"github.com/neuralforge/platform/pkg/common/failure"
	"github.com/neuralforge/platform/pkg/events"
)

type Role string

const (
	Admin               Role = "ADMIN"
	MarketplaceVerifier Role = "MARKETPLACE_VERIFIER"
	Trainer             Role = "TRAINER"
	Verifier            Role = "VERIFIER"
)

// All lists the known roles in a stable order.
var All = []Role{Admin, MarketplaceVerifier, Trainer, Verifier}

func (r Role) Valid() bool {
	switch r {
	case Admin, MarketplaceVerifier, Trainer, Verifier:
		return true
	}
	return false
}

// Parse converts an external role label.
func Parse(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", failure.New(failure.ErrInvalidInput, "parseRole", "unknown role %q", s)
	}
	return r, nil
}

type RoleGranted struct {
	Role    Role            `json:"role"`
	Account account.Account `json:"account"`
	Sender  account.Account `json:"sender"`
}

func (RoleGranted) EventType() string { return "RoleGranted" }
func (e RoleGranted) Parties() []string {
	return []string{e.Account.String(), e.Sender.String()}
}

type RoleRevoked struct {
	Role    Role            `json:"role"`
	Account account.Account `json:"account"`
	Sender  account.Account `json:"sender"`
}

func (RoleRevoked) EventType() string { return "RoleRevoked" }
func (e RoleRevoked) Parties() []string {
	return []string{e.Account.String(), e.Sender.String()}
}

type Registry struct {
	members map[Role]map[account.Account]struct{}
	emit    events.Emitter
}

// NewRegistry bootstraps a registry with admin holding ADMIN.
func NewRegistry(admin account.Account, emit events.Emitter) *Registry {
	r := newEmpty(emit)
	if !admin.IsZero() {
		r.add(Admin, admin)
	}
	return r
}

func newEmpty(emit events.Emitter) *Registry {
	if emit == nil {
		emit = events.Discard
	}
	return &Registry{
		members: make(map[Role]map[account.Account]struct{}),
		emit:    emit,
	}
}

func (r *Registry) HasRole(role Role, a account.Account) bool {
	_, ok := r.members[role][a]
	return ok
}

// Members returns the holders of role, sorted.
func (r *Registry) Members(role Role) []account.Account {
	set := r.members[role]
	out := make([]account.Account, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Registry) GrantRole(caller account.Account, role Role, a account.Account) error {
	const op = "grantRole"
	if err := r.checkAdmin(op, caller, role, a); err != nil {
		return err
	}
	if r.HasRole(role, a) {
		return nil
	}
	r.add(role, a)
	r.emit.Emit(RoleGranted{Role: role, Account: a, Sender: caller})
	return nil
}

func (r *Registry) RevokeRole(caller account.Account, role Role, a account.Account) error {
	const op = "revokeRole"
	if err := r.checkAdmin(op, caller, role, a); err != nil {
		return err
	}
	return r.remove(op, caller, role, a)
}

// RenounceRole drops a role held by the caller itself.
func (r *Registry) RenounceRole(caller account.Account, role Role) error {
	const op = "renounceRole"
	if !role.Valid() {
		return failure.New(failure.ErrInvalidInput, op, "unknown role %q", role)
	}
	return r.remove(op, caller, role, caller)
}

func (r *Registry) checkAdmin(op string, caller account.Account, role Role, a account.Account) error {
	if !r.HasRole(Admin, caller) {
		return failure.New(failure.ErrUnauthorized, op, "%s does not hold %s", caller, Admin)
	}
	if !role.Valid() {
		return failure.New(failure.ErrInvalidInput, op, "unknown role %q", role)
	}
	if a.IsZero() || a.IsModule() {
		return failure.New(failure.ErrInvalidInput, op, "cannot assign roles to %q", a)
	}
	return nil
}

func (r *Registry) remove(op string, caller account.Account, role Role, a account.Account) error {
	if !r.HasRole(role, a) {
		return nil
	}
	if role == Admin && len(r.members[Admin]) == 1 {
		return failure.New(failure.ErrInvalidInput, op, "cannot remove the last %s", Admin)
	}
	delete(r.members[role], a)
	r.emit.Emit(RoleRevoked{Role: role, Account: a, Sender: caller})
	return nil
}

func (r *Registry) add(role Role, a account.Account) {
	set, ok := r.members[role]
	if !ok {
		set = make(map[account.Account]struct{})
		r.members[role] = set
	}
	set[a] = struct{}{}
}

// Snapshot is the serializable form of the registry.
type Snapshot struct {
	Grants []Grant `json:"grants"`
}

type Grant struct {
	Role    Role            `json:"role"`
	Account account.Account `json:"account"`
}

func (r *Registry) Snapshot() Snapshot {
	var grants []Grant
	for _, role := range All {
		for _, a := range r.Members(role) {
			grants = append(grants, Grant{Role: role, Account: a})
		}
	}
	return Snapshot{Grants: grants}
}

// Restore rebuilds a registry from a snapshot.
func Restore(s Snapshot, emit events.Emitter) (*Registry, error) {
	r := newEmpty(emit)
	for _, g := range s.Grants {
		if !g.Role.Valid() {
			return nil, failure.New(failure.ErrInvalidInput, "restoreRoles", "unknown role %q", g.Role)
		}
		r.add(g.Role, g.Account)
	}
	if len(r.members[Admin]) == 0 {
		return nil, failure.New(failure.ErrInvalidInput, "restoreRoles", "snapshot has no %s", Admin)
	}
	return r, nil
}
