// Package account defines participant identifiers and the reserved module
// accounts owned by the marketplace and training components.
package account

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

const modulePrefix = "module:"

var (
	ErrEmptyAccount   = errors.New("account is empty")
	ErrReserved       = errors.New("account is reserved for platform modules")
	ErrInvalidAddress = errors.New("account is not a valid hex address")
)

// Account identifies a token holder. User accounts are checksummed hex
// addresses at the API edge; module accounts carry the "module:" prefix
// and can only be debited by the component that owns them.
type Account string

func (a Account) String() string { return string(a) }

func (a Account) IsZero() bool { return a == "" }

// IsModule reports whether a is a reserved module account.
func (a Account) IsModule() bool {
	return strings.HasPrefix(string(a), modulePrefix)
}

// ModuleName returns the owning module of a reserved account, or "" for
// user accounts. "module:training/escrow/4" belongs to "training".
func (a Account) ModuleName() string {
	if !a.IsModule() {
		return ""
	}
	rest := strings.TrimPrefix(string(a), modulePrefix)
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return rest[:i]
	}
	return rest
}

// Module returns the root account of the named module.
func Module(name string) Account {
	return Account(modulePrefix + name)
}

// Sub returns a child account of module account a.
func (a Account) Sub(path ...string) Account {
	if len(path) == 0 {
		return a
	}
	return Account(string(a) + "/" + strings.Join(path, "/"))
}

// Normalize validates an externally supplied identifier and returns its
// canonical form. Only hex addresses are accepted; they are returned in
// EIP-55 checksum form so "0xabc.." and "0xABC.." name the same holder.
func Normalize(raw string) (Account, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrEmptyAccount
	}
	if strings.HasPrefix(s, modulePrefix) {
		return "", ErrReserved
	}
	if !common.IsHexAddress(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return Account(common.HexToAddress(s).Hex()), nil
}

// MustNormalize is Normalize for fixtures and constants.
func MustNormalize(raw string) Account {
	a, err := Normalize(raw)
	if err != nil {
		panic(err)
	}
	return a
}
