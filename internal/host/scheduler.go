package host

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/robfig/cron/v3"

	"schedwidget/internal/instance"
	appLog "schedwidget/internal/log"
)

// Refresher starts a refresh cycle for one instance.
type Refresher interface {
	Refresh(id instance.ID)
}

// Lister enumerates known instances.
type Lister interface {
	IDs() ([]instance.ID, error)
}

// Scheduler refreshes every known instance on a cron schedule, the way a
// home screen wakes its widgets periodically.
type Scheduler struct {
	cron    *cron.Cron
	target  Refresher
	sources []Lister
}

// NewScheduler parses spec (standard 5-field cron) evaluated in loc.
func NewScheduler(spec string, loc *time.Location, target Refresher, sources ...Lister) (*Scheduler, error) {
	if loc == nil {
		loc = time.Local
	}
	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		target:  target,
		sources: sources,
	}
	if _, err := s.cron.AddFunc(spec, s.RefreshAll); err != nil {
		return nil, fmt.Errorf("host: invalid refresh schedule %q: %w", spec, err)
	}
	return s, nil
}

// RefreshAll starts a cycle for every instance reported by any source.
func (s *Scheduler) RefreshAll() {
	ids := s.instances()
	appLog.Info("scheduled widget refresh", "instances", len(ids))
	for _, id := range ids {
		s.target.Refresh(id)
	}
}

func (s *Scheduler) instances() []instance.ID {
	seen := make(map[instance.ID]bool)
	var ids []instance.ID
	for _, src := range s.sources {
		list, err := src.IDs()
		if err != nil {
			appLog.Error("failed to list widget instances", err)
			continue
		}
		for _, id := range list {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Run starts the cron loop and blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	return nil
}
