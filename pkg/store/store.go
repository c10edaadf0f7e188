// Package store persists engine state snapshots.
package store

import (
	"context"
	"errors"

	"github.com/neuralforge/platform/pkg/forge"
)

// ErrNoSnapshot is returned by Load when nothing has been saved yet.
var ErrNoSnapshot = errors.New("no snapshot stored")

type Store interface {
	Load(ctx context.Context) (forge.State, error)
	Save(ctx context.Context, st forge.State) error
}

// Memory keeps the last saved state in process. Used for the memory
// backend and in tests.
type Memory struct {
	state *forge.State
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Load(context.Context) (forge.State, error) {
	if m.state == nil {
		return forge.State{}, ErrNoSnapshot
	}
	return *m.state, nil
}

func (m *Memory) Save(_ context.Context, st forge.State) error {
	m.state = &st
	return nil
}
