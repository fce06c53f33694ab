// Package refresh sequences one widget refresh: config, date, data
// subscription, view tree and submission to the host.
package refresh

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"schedwidget/internal/instance"
	appLog "schedwidget/internal/log"
	"schedwidget/internal/model"
	"schedwidget/internal/widget"
)

// Policy reports the notification settings that decide whether a refresh
// must reload repository data itself.
type Policy interface {
	NotificationsEnabled() bool
	HasNotificationPermission() bool
}

// StaticPolicy is a Policy with fixed answers, typically read from config.
type StaticPolicy struct {
	Enabled    bool
	Permission bool
}

func (p StaticPolicy) NotificationsEnabled() bool      { return p.Enabled }
func (p StaticPolicy) HasNotificationPermission() bool { return p.Permission }

// Host is the surface that displays widget instances.
type Host interface {
	Submit(id instance.ID, snap widget.Snapshot) error
	SubmitPartial(id instance.ID, region string, n widget.Node) error
	RegisterAction(id instance.ID, region string, a widget.Action) error
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Store  instance.Store
	Repo   Repository
	Policy Policy
	Host   Host
	Labels widget.Labels
	// Clock defaults to time.Now.
	Clock widget.Clock
	// FallbackAfter, when positive, renders a placeholder schedule for a
	// cycle that has not received data in time.
	FallbackAfter time.Duration
}

// Orchestrator runs refresh cycles. Cycles for the same instance are not
// serialized: when they overlap, whichever submits last is what the host
// shows.
type Orchestrator struct {
	ctx     context.Context
	deps    Deps
	pending atomic.Int64

	// mu guards removals and every host submission, so that a cycle started
	// before Removed never submits after it.
	mu          sync.Mutex
	generations map[instance.ID]uint64
}

// New creates an Orchestrator. ctx bounds all cycles it starts; cancelling
// it abandons cycles still waiting for data.
func New(ctx context.Context, deps Deps) *Orchestrator {
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Policy == nil {
		deps.Policy = StaticPolicy{}
	}
	return &Orchestrator{ctx: ctx, deps: deps, generations: make(map[instance.ID]uint64)}
}

// Pending is the number of cycles still waiting for their first emission.
func (o *Orchestrator) Pending() int {
	return int(o.pending.Load())
}

// Refresh starts a new cycle for id and returns without waiting for data.
func (o *Orchestrator) Refresh(id instance.ID) {
	cfg, err := o.deps.Store.Get(id)
	if err != nil {
		appLog.Error("instance config unreadable; using defaults", err, "instance", id)
		cfg = instance.DefaultConfig()
	}

	if !o.deps.Policy.NotificationsEnabled() || !o.deps.Policy.HasNotificationPermission() {
		// Background notification refresh is not running, so nothing else
		// keeps the repository current.
		o.deps.Repo.Refresh()
	}

	group := o.ResolveGroup(cfg.Group)
	now := o.deps.Clock()
	date := widget.ResolveDate(cfg.Day, now)

	c := &cycle{o: o, id: id, gen: o.generation(id), cfg: cfg, group: group, started: now}
	o.pending.Add(1)

	appLog.Debug("widget refresh started",
		"instance", id,
		"group", group,
		"date", date.Format("2006-01-02"),
	)

	sub := o.deps.Repo.Lessons(date, group, "")
	if o.deps.FallbackAfter > 0 {
		c.mu.Lock()
		c.timer = time.AfterFunc(o.deps.FallbackAfter, c.fallback)
		c.mu.Unlock()
	}
	Once(o.ctx, sub, c.deliver)
}

// Removed forgets the configuration of instances taken off the host. Cycles
// of those instances still waiting for data submit nothing.
func (o *Orchestrator) Removed(ids ...instance.ID) {
	o.mu.Lock()
	for _, id := range ids {
		o.generations[id]++
	}
	o.mu.Unlock()

	for _, id := range ids {
		if err := o.deps.Store.Delete(id); err != nil {
			appLog.Error("failed to delete instance config", err, "instance", id)
			continue
		}
		appLog.Info("widget instance removed", "instance", id)
	}
}

// ResolveGroup maps the stored group preference to the label shown and
// queried. It is evaluated on every refresh so that changes to the saved
// application group are picked up.
func (o *Orchestrator) ResolveGroup(group string) string {
	if group != instance.GroupAppDefault {
		return group
	}
	if saved, ok := o.deps.Repo.SavedGroup(); ok && saved != "" {
		return saved
	}
	return o.deps.Labels.NotSpecified
}

func (o *Orchestrator) generation(id instance.ID) uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.generations[id]
}

// submit runs fn unless id was removed after the cycle of generation gen
// started.
func (o *Orchestrator) submit(id instance.ID, gen uint64, fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.generations[id] != gen {
		appLog.Debug("instance removed during refresh; dropping render", "instance", id)
		return
	}
	fn()
}

func (o *Orchestrator) actions(id instance.ID) []widget.Action {
	return []widget.Action{
		{Region: widget.RegionRefresh, Kind: widget.ActionRefresh, Instance: id},
		{Region: widget.RegionSchedule, Kind: widget.ActionOpenApp, Instance: id},
	}
}

// render builds and submits a full snapshot. Any failure is logged and the
// host keeps whatever it showed before.
func (o *Orchestrator) render(id instance.ID, m widget.RenderModel) {
	defer o.recoverRender(id)

	snap := widget.Build(m, o.deps.Labels).WithActions(o.actions(id)...)
	for _, a := range snap.Actions {
		if err := o.deps.Host.RegisterAction(id, a.Region, a); err != nil {
			appLog.Error("failed to register widget action", err, "instance", id, "region", a.Region)
		}
	}
	if err := o.deps.Host.Submit(id, snap); err != nil {
		appLog.Error("failed to submit widget snapshot", err, "instance", id)
		return
	}
	appLog.Info("widget rendered", "instance", id, "template", snap.Template, "rows", len(m.Lessons))
}

// renderSchedule submits only the schedule region.
func (o *Orchestrator) renderSchedule(id instance.ID, lessons []model.Lesson) {
	defer o.recoverRender(id)

	sched := widget.BuildSchedule(lessons, o.deps.Labels)
	if err := o.deps.Host.SubmitPartial(id, widget.RegionSchedule, sched); err != nil {
		appLog.Error("failed to submit widget schedule", err, "instance", id)
		return
	}
	appLog.Info("widget schedule updated", "instance", id, "rows", len(lessons))
}

func (o *Orchestrator) recoverRender(id instance.ID) {
	if r := recover(); r != nil {
		appLog.Error("widget render failed; previous snapshot kept", fmt.Errorf("panic: %v", r), "instance", id)
	}
}

type cycleState int

const (
	awaitingData cycleState = iota
	fallbackRendered
	finished
)

// cycle is one Idle -> AwaitingData -> Rendered pass for an instance.
type cycle struct {
	o       *Orchestrator
	id      instance.ID
	gen     uint64
	cfg     instance.Config
	group   string
	started time.Time

	mu    sync.Mutex
	state cycleState
	timer *time.Timer

	// submitMu orders the fallback render before a late schedule update.
	submitMu sync.Mutex
}

func (c *cycle) model(lessons []model.Lesson) widget.RenderModel {
	return widget.NewRenderModel(c.id, c.cfg, c.group, c.started, lessons)
}

func (c *cycle) deliver(lessons []model.Lesson, ok bool) {
	defer c.o.pending.Add(-1)

	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
	}
	prev := c.state
	c.state = finished
	c.mu.Unlock()

	if !ok {
		appLog.Debug("lesson stream ended without data", "instance", c.id)
		return
	}
	if prev == fallbackRendered {
		c.submitMu.Lock()
		defer c.submitMu.Unlock()
		c.o.submit(c.id, c.gen, func() { c.o.renderSchedule(c.id, lessons) })
		return
	}
	c.o.submit(c.id, c.gen, func() { c.o.render(c.id, c.model(lessons)) })
}

func (c *cycle) fallback() {
	c.mu.Lock()
	if c.state != awaitingData {
		c.mu.Unlock()
		return
	}
	c.state = fallbackRendered
	c.submitMu.Lock()
	c.mu.Unlock()
	defer c.submitMu.Unlock()

	appLog.Warn("no lessons received in time; rendering placeholder",
		"instance", c.id,
		"after", c.o.deps.FallbackAfter,
	)
	c.o.submit(c.id, c.gen, func() { c.o.render(c.id, c.model(nil)) })
}
