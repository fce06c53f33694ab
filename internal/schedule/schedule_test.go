package schedule

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schedwidget/internal/host"
	"schedwidget/internal/instance"
	"schedwidget/internal/model"
	"schedwidget/internal/refresh"
	"schedwidget/internal/widget"
)

func ics(lines ...string) string {
	all := append([]string{"BEGIN:VCALENDAR", "VERSION:2.0", "PRODID:-//test//schedule//EN"}, lines...)
	all = append(all, "END:VCALENDAR")
	return strings.Join(all, "\r\n") + "\r\n"
}

// Mondays from 2026-10-05. The 12th is cancelled for math and the 19th is
// moved two hours later into another room.
var timetable = ics(
	"BEGIN:VEVENT",
	"UID:math-a",
	"SUMMARY:Math",
	"DESCRIPTION:Ivanova",
	"LOCATION:A-1",
	"CATEGORIES:A",
	"DTSTART:20261005T080000Z",
	"DTEND:20261005T093000Z",
	"RRULE:FREQ=WEEKLY;COUNT=10",
	"EXDATE:20261012T080000Z",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:math-a",
	"RECURRENCE-ID:20261019T080000Z",
	"SUMMARY:Math",
	"DESCRIPTION:Ivanova",
	"LOCATION:B-2",
	"CATEGORIES:A",
	"DTSTART:20261019T100000Z",
	"DTEND:20261019T113000Z",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:physics-a",
	"SUMMARY:Physics",
	"DESCRIPTION:Petrov",
	"LOCATION:Lab 3",
	"CATEGORIES:A",
	"X-LESSON-NUMBER:3",
	"DTSTART:20261005T090000Z",
	"DTEND:20261005T103000Z",
	"RRULE:FREQ=WEEKLY",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:chem-b",
	"SUMMARY:Chemistry",
	"DESCRIPTION:Sidorov",
	"LOCATION:C-7",
	"CATEGORIES:B,C",
	"DTSTART:20261005T080000Z",
	"DTEND:20261005T093000Z",
	"END:VEVENT",
)

type feedServer struct {
	mu     sync.Mutex
	body   string
	etag   string
	status int
	hits   int
	cond   int
}

func (s *feedServer) set(body, etag string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.body, s.etag, s.status = body, etag, status
}

func (s *feedServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits++
	if s.status != 0 && s.status != http.StatusOK {
		w.WriteHeader(s.status)
		return
	}
	if s.etag != "" && r.Header.Get("If-None-Match") == s.etag {
		s.cond++
		w.WriteHeader(http.StatusNotModified)
		return
	}
	if s.etag != "" {
		w.Header().Set("ETag", s.etag)
	}
	w.Header().Set("Content-Type", "text/calendar")
	_, _ = w.Write([]byte(s.body))
}

func newFeed(t *testing.T, body string) (*feedServer, *httptest.Server) {
	t.Helper()
	fs := &feedServer{body: body, etag: `"v1"`}
	srv := httptest.NewServer(fs)
	t.Cleanup(srv.Close)
	return fs, srv
}

func newRepo(t *testing.T, url string) *Repository {
	t.Helper()
	return New(context.Background(), Options{
		Sources:  []Source{{ID: "main", URL: url}},
		CacheDir: t.TempDir(),
		Location: time.UTC,
	})
}

func day(d int) time.Time {
	return time.Date(2026, time.October, d, 0, 0, 0, 0, time.UTC)
}

func TestLessonsOnExpandsWeeklyLessons(t *testing.T) {
	_, srv := newFeed(t, timetable)
	repo := newRepo(t, srv.URL)
	require.NoError(t, repo.Reload(context.Background()))

	got := repo.LessonsOn(day(5), "A", "")
	want := []model.Lesson{
		{Date: day(5), Number: "1", Subject: "Math", Teacher: "Ivanova", Room: "A-1", Times: "08:00-09:30", Group: "A"},
		{Date: day(5), Number: "3", Subject: "Physics", Teacher: "Petrov", Room: "Lab 3", Times: "09:00-10:30", Group: "A"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("LessonsOn mismatch (-want +got):\n%s", diff)
	}
}

func TestLessonsOnHonorsExDate(t *testing.T) {
	_, srv := newFeed(t, timetable)
	repo := newRepo(t, srv.URL)
	require.NoError(t, repo.Reload(context.Background()))

	got := repo.LessonsOn(day(12), "A", "")
	require.Len(t, got, 1)
	assert.Equal(t, "Physics", got[0].Subject)
}

func TestLessonsOnAppliesOverride(t *testing.T) {
	_, srv := newFeed(t, timetable)
	repo := newRepo(t, srv.URL)
	require.NoError(t, repo.Reload(context.Background()))

	got := repo.LessonsOn(day(19), "A", "")
	require.Len(t, got, 2)
	assert.Equal(t, "Physics", got[0].Subject)
	assert.Equal(t, "Math", got[1].Subject)
	assert.Equal(t, "B-2", got[1].Room)
	assert.Equal(t, "10:00-11:30", got[1].Times)
}

func TestLessonsOnFiltersGroupAndTeacher(t *testing.T) {
	_, srv := newFeed(t, timetable)
	repo := newRepo(t, srv.URL)
	require.NoError(t, repo.Reload(context.Background()))

	b := repo.LessonsOn(day(5), "c", "")
	require.Len(t, b, 1)
	assert.Equal(t, "Chemistry", b[0].Subject)
	assert.Equal(t, "c", b[0].Group)

	// Not recurring.
	assert.Empty(t, repo.LessonsOn(day(12), "B", ""))

	byTeacher := repo.LessonsOn(day(5), "A", "petrov")
	require.Len(t, byTeacher, 1)
	assert.Equal(t, "Physics", byTeacher[0].Subject)

	assert.Empty(t, repo.LessonsOn(day(5), "Z", ""))
	// Saturday.
	assert.Empty(t, repo.LessonsOn(day(17), "A", ""))
}

func TestSourceGroupOverridesCategories(t *testing.T) {
	_, srv := newFeed(t, timetable)
	repo := New(context.Background(), Options{
		Sources:  []Source{{ID: "main", URL: srv.URL, Group: "X"}},
		CacheDir: t.TempDir(),
		Location: time.UTC,
	})
	require.NoError(t, repo.Reload(context.Background()))

	assert.Len(t, repo.LessonsOn(day(5), "X", ""), 3)
	assert.Empty(t, repo.LessonsOn(day(5), "A", ""))
}

func TestFetchUsesConditionalRequests(t *testing.T) {
	fs, srv := newFeed(t, timetable)
	f := NewFetcher(t.TempDir(), nil)
	src := Source{ID: "main", URL: srv.URL}

	first, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Body, second.Body)

	fs.mu.Lock()
	defer fs.mu.Unlock()
	assert.Equal(t, 2, fs.hits)
	assert.Equal(t, 1, fs.cond)
}

func TestFetchFallsBackToCacheOnServerError(t *testing.T) {
	fs, srv := newFeed(t, timetable)
	f := NewFetcher(t.TempDir(), nil)
	src := Source{ID: "main", URL: srv.URL}

	_, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)

	fs.set("", "", http.StatusInternalServerError)
	got, err := f.FetchOne(context.Background(), src)
	require.NoError(t, err)
	assert.True(t, got.FromCache)
	assert.Equal(t, timetable, string(got.Body))
}

func TestFetchFailsWithoutCache(t *testing.T) {
	fs, srv := newFeed(t, timetable)
	fs.set("", "", http.StatusInternalServerError)
	f := NewFetcher(t.TempDir(), nil)

	_, err := f.FetchOne(context.Background(), Source{ID: "main", URL: srv.URL})
	require.Error(t, err)
}

func TestReloadFailureKeepsRepositoryUnloaded(t *testing.T) {
	fs, srv := newFeed(t, timetable)
	fs.set("", "", http.StatusBadGateway)
	repo := newRepo(t, srv.URL)

	err := repo.Reload(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "main")

	_, loaded := repo.LoadedAt()
	assert.False(t, loaded)
}

func TestSubscriptionEmitsAfterEachReload(t *testing.T) {
	fs, srv := newFeed(t, timetable)
	repo := newRepo(t, srv.URL)

	sub := repo.Lessons(day(5), "B", "")
	select {
	case <-sub.C():
		t.Fatal("emitted before the timetable was loaded")
	default:
	}

	require.NoError(t, repo.Reload(context.Background()))
	first := <-sub.C()
	require.Len(t, first, 1)
	assert.Equal(t, "Chemistry", first[0].Subject)

	fs.set(ics(), `"v2"`, http.StatusOK)
	require.NoError(t, repo.Reload(context.Background()))
	second := <-sub.C()
	assert.Empty(t, second)

	sub.Close()
	sub.Close()
	_, open := <-sub.C()
	assert.False(t, open)
	assert.Zero(t, repo.Subscriptions())
}

func TestSubscriptionAfterLoadEmitsImmediately(t *testing.T) {
	_, srv := newFeed(t, timetable)
	repo := newRepo(t, srv.URL)
	require.NoError(t, repo.Reload(context.Background()))

	sub := repo.Lessons(day(5), "A", "")
	defer sub.Close()
	select {
	case got := <-sub.C():
		assert.Len(t, got, 2)
	case <-time.After(time.Second):
		t.Fatal("no emission")
	}
}

func TestSavedGroup(t *testing.T) {
	repo := New(context.Background(), Options{})
	_, ok := repo.SavedGroup()
	assert.False(t, ok)

	repo = New(context.Background(), Options{DefaultGroup: "CS-3"})
	g, ok := repo.SavedGroup()
	assert.True(t, ok)
	assert.Equal(t, "CS-3", g)
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://calendar.example.com/...(redacted)",
		redactURL("https://calendar.example.com/private-abc123/basic.ics?token=x"))
	assert.Equal(t, "ics://...(redacted)", redactURL("not a url"))
}

func TestParseICSTime(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)

	utc, err := parseICSTime("20261019T080000Z", loc)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, utc.Location())

	floating, err := parseICSTime("20261019T080000", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 19, 8, 0, 0, 0, loc), floating)

	date, err := parseICSTime("20261019", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 19, 0, 0, 0, 0, loc), date)

	_, err = parseICSTime(" ", loc)
	assert.Error(t, err)
}

func TestRepositoryDrivesWidgetRefresh(t *testing.T) {
	_, srv := newFeed(t, timetable)
	repo := New(context.Background(), Options{
		Sources:      []Source{{ID: "main", URL: srv.URL}},
		CacheDir:     t.TempDir(),
		Location:     time.UTC,
		DefaultGroup: "A",
	})
	require.NoError(t, repo.Reload(context.Background()))

	store := instance.NewMemStore()
	h := host.NewMemory()
	orch := refresh.New(context.Background(), refresh.Deps{
		Store:  store,
		Repo:   repo,
		Policy: refresh.StaticPolicy{Enabled: true, Permission: true},
		Host:   h,
		Labels: widget.LabelsFor("en"),
		// Sunday; tomorrow is the Monday with the moved math lesson.
		Clock: func() time.Time { return time.Date(2026, 10, 18, 18, 30, 0, 0, time.UTC) },
	})
	require.NoError(t, store.Put(1, instance.Config{Group: instance.GroupAppDefault, Day: instance.DayTomorrow}))

	orch.Refresh(1)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	snap, _, err := h.Wait(ctx, 1, 0)
	require.NoError(t, err)

	group, _ := snap.Region(widget.RegionGroup)
	assert.Equal(t, "for group: A", group.Text)
	rows := snap.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, "Physics", rows[0].Fields.Subject)
	assert.Equal(t, "B-2", rows[1].Fields.Room)

	require.Eventually(t, func() bool { return repo.Subscriptions() == 0 }, 2*time.Second, 5*time.Millisecond)
}
