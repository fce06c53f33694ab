package refresh

import (
	"context"
	"time"

	"schedwidget/internal/model"
)

// Subscription is a reactive stream of lesson lists opened on the repository.
// The repository may emit any number of times; Close releases it.
type Subscription interface {
	C() <-chan []model.Lesson
	Close()
}

// Repository is the lesson data collaborator.
type Repository interface {
	// Lessons subscribes to the lessons of group on date. An empty teacher
	// means no teacher filter.
	Lessons(date time.Time, group, teacher string) Subscription
	// Refresh asks the repository to reload its backing data. It returns
	// immediately.
	Refresh()
	// SavedGroup is the application's last saved group, if any.
	SavedGroup() (string, bool)
}

// Handler receives the outcome of a one-shot subscription. ok is false when
// the stream ended, or the process shut down, before anything was emitted.
type Handler func(lessons []model.Lesson, ok bool)

// Once waits for the first emission of sub on a new goroutine, releases the
// subscription, then calls handle exactly once. It does not block the caller
// and imposes no timeout: a stream that never emits keeps the goroutine
// parked until ctx is done.
func Once(ctx context.Context, sub Subscription, handle Handler) {
	go func() {
		var (
			lessons []model.Lesson
			ok      bool
		)
		select {
		case lessons, ok = <-sub.C():
		case <-ctx.Done():
		}
		sub.Close()
		handle(lessons, ok)
	}()
}
