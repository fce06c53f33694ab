// Package host is the in-process display surface for widget instances: it
// keeps the latest snapshot per instance, applies partial region updates,
// holds deferred actions and triggers periodic refreshes.
package host

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"schedwidget/internal/instance"
	"schedwidget/internal/widget"
)

var (
	// ErrNoSnapshot is returned when an instance has never been rendered.
	ErrNoSnapshot = errors.New("host: no snapshot for instance")
	// ErrNoAction is returned when no action is bound to a region.
	ErrNoAction = errors.New("host: no action registered for region")
)

// Memory stores snapshots and actions per instance.
type Memory struct {
	mu       sync.Mutex
	snaps    map[instance.ID]widget.Snapshot
	versions map[instance.ID]uint64
	actions  map[instance.ID]map[string]widget.Action

	// changed is closed and replaced on every update.
	changed chan struct{}
}

func NewMemory() *Memory {
	return &Memory{
		snaps:    make(map[instance.ID]widget.Snapshot),
		versions: make(map[instance.ID]uint64),
		actions:  make(map[instance.ID]map[string]widget.Action),
		changed:  make(chan struct{}),
	}
}

// Submit replaces the snapshot of id.
func (m *Memory) Submit(id instance.ID, snap widget.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[id] = snap
	m.bumpLocked(id)
	return nil
}

// SubmitPartial replaces one region of the current snapshot of id.
func (m *Memory) SubmitPartial(id instance.ID, region string, n widget.Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.snaps[id]
	if !ok {
		return fmt.Errorf("%w %v", ErrNoSnapshot, id)
	}
	next, ok := cur.WithRegion(region, n)
	if !ok {
		return fmt.Errorf("host: instance %v has no region %q", id, region)
	}
	m.snaps[id] = next
	m.bumpLocked(id)
	return nil
}

// RegisterAction binds a deferred action to a region of id.
func (m *Memory) RegisterAction(id instance.ID, region string, a widget.Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byRegion, ok := m.actions[id]
	if !ok {
		byRegion = make(map[string]widget.Action)
		m.actions[id] = byRegion
	}
	byRegion[region] = a
	return nil
}

// Snapshot returns the current snapshot of id.
func (m *Memory) Snapshot(id instance.ID) (widget.Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snaps[id]
	return snap, ok
}

// Version counts the updates id has received.
func (m *Memory) Version(id instance.ID) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.versions[id]
}

// Action looks up the action bound to region of id.
func (m *Memory) Action(id instance.ID, region string) (widget.Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.actions[id][region]
	if !ok {
		return widget.Action{}, fmt.Errorf("%w %q of instance %v", ErrNoAction, region, id)
	}
	return a, nil
}

// IDs lists instances currently shown, in ascending order.
func (m *Memory) IDs() ([]instance.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]instance.ID, 0, len(m.snaps))
	for id := range m.snaps {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Forget drops everything held for the given instances.
func (m *Memory) Forget(ids ...instance.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.snaps, id)
		delete(m.versions, id)
		delete(m.actions, id)
	}
}

// Wait blocks until id has a version newer than after and returns the
// snapshot and its version.
func (m *Memory) Wait(ctx context.Context, id instance.ID, after uint64) (widget.Snapshot, uint64, error) {
	for {
		m.mu.Lock()
		if v := m.versions[id]; v > after {
			snap := m.snaps[id]
			m.mu.Unlock()
			return snap, v, nil
		}
		ch := m.changed
		m.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return widget.Snapshot{}, after, ctx.Err()
		}
	}
}

func (m *Memory) bumpLocked(id instance.ID) {
	m.versions[id]++
	close(m.changed)
	m.changed = make(chan struct{})
}
