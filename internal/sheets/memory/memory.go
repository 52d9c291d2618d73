// Package memory keeps every user's rows in process memory. It backs local
// development and tests; nothing survives a restart.
package memory

import (
	"context"
	"fmt"
	"sync"

	"mmms/internal/core"
	"mmms/internal/sheets"
)

type Store struct {
	mu    sync.Mutex
	users map[string]map[sheets.Kind][]sheets.Row
}

var (
	_ sheets.Provider = (*Store)(nil)
	_ sheets.Gateway  = (*userGateway)(nil)
)

func New() *Store {
	return &Store{users: make(map[string]map[sheets.Kind][]sheets.Row)}
}

// Gateway returns the rows of user, keyed by email.
func (s *Store) Gateway(_ context.Context, user core.User) (sheets.Gateway, error) {
	if user.Email == "" {
		return nil, &core.AuthError{Reason: "user without email"}
	}
	return &userGateway{store: s, owner: user.Email}, nil
}

type userGateway struct {
	store *Store
	owner string
}

// kinds must be called with the store lock held.
func (g *userGateway) kinds() map[sheets.Kind][]sheets.Row {
	k, ok := g.store.users[g.owner]
	if !ok {
		k = make(map[sheets.Kind][]sheets.Row)
		g.store.users[g.owner] = k
	}
	return k
}

func (g *userGateway) EnsureContainer(_ context.Context, kind sheets.Kind) (string, error) {
	if _, err := sheets.LayoutOf(kind); err != nil {
		return "", core.Persistence("ensure", string(kind), err)
	}
	g.store.mu.Lock()
	defer g.store.mu.Unlock()
	k := g.kinds()
	if _, ok := k[kind]; !ok {
		k[kind] = []sheets.Row{}
	}
	return fmt.Sprintf("mem:%s:%s", g.owner, kind), nil
}

func (g *userGateway) List(_ context.Context, kind sheets.Kind) ([]sheets.Row, error) {
	if _, err := sheets.LayoutOf(kind); err != nil {
		return nil, core.Persistence("list", string(kind), err)
	}
	g.store.mu.Lock()
	defer g.store.mu.Unlock()
	rows := g.kinds()[kind]
	out := make([]sheets.Row, len(rows))
	for i, r := range rows {
		out[i] = append(sheets.Row(nil), r...)
	}
	return out, nil
}

func (g *userGateway) Append(_ context.Context, kind sheets.Kind, row sheets.Row) error {
	layout, err := sheets.LayoutOf(kind)
	if err != nil {
		return core.Persistence("append", string(kind), err)
	}
	g.store.mu.Lock()
	defer g.store.mu.Unlock()
	k := g.kinds()
	k[kind] = append(k[kind], layout.Pad(append(sheets.Row(nil), row...)))
	return nil
}

func (g *userGateway) UpdateCell(_ context.Context, kind sheets.Kind, rowIndex, column int, values ...string) error {
	layout, err := sheets.LayoutOf(kind)
	if err != nil {
		return core.Persistence("update", string(kind), err)
	}
	if column < 1 || column+len(values)-1 > layout.Width() {
		return core.Persistence("update", string(kind), fmt.Errorf("columns %d..%d outside layout", column, column+len(values)-1))
	}
	g.store.mu.Lock()
	defer g.store.mu.Unlock()
	rows := g.kinds()[kind]
	if rowIndex < 0 || rowIndex >= len(rows) {
		return core.Persistence("update", string(kind), sheets.ErrRowOutOfRange)
	}
	row := layout.Pad(rows[rowIndex])
	copy(row[column-1:], values)
	rows[rowIndex] = row
	return nil
}

func (g *userGateway) DeleteRow(_ context.Context, kind sheets.Kind, rowIndex int) error {
	if _, err := sheets.LayoutOf(kind); err != nil {
		return core.Persistence("delete", string(kind), err)
	}
	g.store.mu.Lock()
	defer g.store.mu.Unlock()
	k := g.kinds()
	rows := k[kind]
	if rowIndex < 0 || rowIndex >= len(rows) {
		return core.Persistence("delete", string(kind), sheets.ErrRowOutOfRange)
	}
	k[kind] = append(rows[:rowIndex:rowIndex], rows[rowIndex+1:]...)
	return nil
}
