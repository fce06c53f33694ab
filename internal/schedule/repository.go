// Package schedule is the lesson repository: it loads ICS timetable feeds,
// expands them into per-day lessons and streams them to subscribers.
package schedule

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	appLog "schedwidget/internal/log"
	"schedwidget/internal/model"
	"schedwidget/internal/refresh"
)

// Options configure a Repository.
type Options struct {
	Sources  []Source
	CacheDir string
	// Location decides which instants belong to a calendar day.
	Location *time.Location
	// DefaultGroup is the application's saved group; empty means none.
	DefaultGroup string
	// Client overrides the HTTP client used for feeds.
	Client *http.Client
}

// Repository holds the parsed timetable in memory. Reload replaces it and
// pushes fresh lesson lists to every open subscription.
type Repository struct {
	opts    Options
	ctx     context.Context
	fetcher *Fetcher
	flight  singleflight.Group

	mu       sync.RWMutex
	events   []lessonEvent
	loaded   bool
	loadedAt time.Time

	subsMu sync.Mutex
	subs   map[*subscription]struct{}
}

// New creates a Repository. Background reloads started by Refresh run under
// ctx.
func New(ctx context.Context, opts Options) *Repository {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Repository{
		opts:    opts,
		ctx:     ctx,
		fetcher: NewFetcher(opts.CacheDir, opts.Client),
		subs:    make(map[*subscription]struct{}),
	}
}

var _ refresh.Repository = (*Repository)(nil)

// SavedGroup returns the application's saved group.
func (r *Repository) SavedGroup() (string, bool) {
	return r.opts.DefaultGroup, r.opts.DefaultGroup != ""
}

// LoadedAt reports when the timetable was last replaced.
func (r *Repository) LoadedAt() (time.Time, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loadedAt, r.loaded
}

// Refresh reloads the feeds in the background.
func (r *Repository) Refresh() {
	go func() {
		if err := r.Reload(r.ctx); err != nil {
			appLog.Error("lesson repository reload failed", err)
		}
	}()
}

// Reload fetches and parses all feeds. Concurrent calls share one load. A
// partially failed load still replaces the timetable with what was read;
// a load that read nothing keeps the previous one.
func (r *Repository) Reload(ctx context.Context) error {
	_, err, _ := r.flight.Do("reload", func() (any, error) {
		return nil, r.load(ctx)
	})
	return err
}

func (r *Repository) load(ctx context.Context) error {
	feeds, errs := r.fetcher.FetchAll(ctx, r.opts.Sources)
	if len(feeds) == 0 && len(errs) > 0 {
		return errors.Join(errs...)
	}

	var events []lessonEvent
	for _, fd := range feeds {
		evs, err := parseFeed(fd.Source, fd.Body)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		events = append(events, evs...)
	}

	r.mu.Lock()
	r.events = events
	r.loaded = true
	r.loadedAt = time.Now()
	r.mu.Unlock()

	appLog.Info("lesson repository loaded", "sources", len(r.opts.Sources), "events", len(events), "errors", len(errs))
	r.publish()
	return errors.Join(errs...)
}

// LessonsOn returns the lessons of group on date's calendar day, ordered by
// start time. An empty teacher disables the teacher filter.
func (r *Repository) LessonsOn(date time.Time, group, teacher string) []model.Lesson {
	loc := r.opts.Location
	// date names a calendar day; its own zone decides which one.
	y, m, d := date.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, loc)
	to := from.AddDate(0, 0, 1)

	r.mu.RLock()
	events := r.events
	r.mu.RUnlock()

	var occs []occurrence
	for _, o := range occurrencesBetween(events, from, to, loc) {
		if !hasGroup(o.Event.Groups, group) {
			continue
		}
		if teacher != "" && !strings.EqualFold(o.Event.Teacher, teacher) {
			continue
		}
		occs = append(occs, o)
	}
	sort.SliceStable(occs, func(i, j int) bool {
		if occs[i].Start.Equal(occs[j].Start) {
			return occs[i].Event.Subject < occs[j].Event.Subject
		}
		return occs[i].Start.Before(occs[j].Start)
	})

	lessons := make([]model.Lesson, 0, len(occs))
	for i, o := range occs {
		number := o.Event.Number
		if number == "" {
			number = strconv.Itoa(i + 1)
		}
		var times string
		if !o.Event.AllDay {
			times = o.Start.Format("15:04") + "-" + o.End.Format("15:04")
		}
		lessons = append(lessons, model.Lesson{
			Date:    from,
			Number:  number,
			Subject: o.Event.Subject,
			Teacher: o.Event.Teacher,
			Room:    o.Event.Room,
			Times:   times,
			Group:   group,
		})
	}
	return lessons
}

func hasGroup(groups []string, group string) bool {
	for _, g := range groups {
		if strings.EqualFold(g, group) {
			return true
		}
	}
	return false
}

// Lessons opens a stream of the lessons of group on date. The current list
// is emitted right away once the timetable has been loaded, and again after
// every reload until the subscription is closed.
func (r *Repository) Lessons(date time.Time, group, teacher string) refresh.Subscription {
	sub := &subscription{
		repo:    r,
		date:    date,
		group:   group,
		teacher: teacher,
		ch:      make(chan []model.Lesson, 1),
	}

	r.subsMu.Lock()
	r.subs[sub] = struct{}{}
	r.subsMu.Unlock()

	r.mu.RLock()
	loaded := r.loaded
	r.mu.RUnlock()
	if loaded {
		sub.offer(r.LessonsOn(date, group, teacher))
	}
	return sub
}

func (r *Repository) publish() {
	r.subsMu.Lock()
	subs := make([]*subscription, 0, len(r.subs))
	for s := range r.subs {
		subs = append(subs, s)
	}
	r.subsMu.Unlock()

	for _, s := range subs {
		s.offer(r.LessonsOn(s.date, s.group, s.teacher))
	}
}

// Subscriptions is the number of open streams.
func (r *Repository) Subscriptions() int {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()
	return len(r.subs)
}

type subscription struct {
	repo    *Repository
	date    time.Time
	group   string
	teacher string

	ch     chan []model.Lesson
	closed bool // guarded by repo.subsMu
}

func (s *subscription) C() <-chan []model.Lesson {
	return s.ch
}

// offer replaces any undelivered list with lessons.
func (s *subscription) offer(lessons []model.Lesson) {
	s.repo.subsMu.Lock()
	defer s.repo.subsMu.Unlock()
	if s.closed {
		return
	}
	select {
	case <-s.ch:
	default:
	}
	s.ch <- lessons
}

func (s *subscription) Close() {
	s.repo.subsMu.Lock()
	defer s.repo.subsMu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	delete(s.repo.subs, s)
	close(s.ch)
}
