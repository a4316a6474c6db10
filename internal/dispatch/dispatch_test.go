package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/Sean-McConnachie/delayedgram/internal/config"
	"github.com/Sean-McConnachie/delayedgram/internal/queue"
	"github.com/Sean-McConnachie/delayedgram/pkg/logx"
)

type fakePublisher struct {
	calls     int
	lastPost  queue.Post
	lastPaths []string
	err       error
}

func (f *fakePublisher) Publish(ctx context.Context, post queue.Post, imagePaths []string) error {
	f.calls++
	f.lastPost = post
	f.lastPaths = imagePaths
	return f.err
}

func testDispatcher(t *testing.T, pub *fakePublisher, now time.Time) (*Dispatcher, *config.Settings) {
	t.Helper()
	cfg := &config.Settings{
		UnprocessedDir: t.TempDir(),
		ProcessedDir:   t.TempDir(),
		CheckInterval:  15 * time.Minute,
	}
	d := New(cfg, pub, logx.Nop())
	d.Now = func() time.Time { return now }
	return d, cfg
}

func writeRecord(t *testing.T, root string, id int, meta queue.Meta, images ...string) {
	t.Helper()
	dir := filepath.Join(root, strconv.Itoa(id))
	if err := os.MkdirAll(filepath.Join(dir, queue.ImageDir), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	b, err := json.Marshal(meta)
	if err != nil {
		t.Fatalf("marshal meta: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, queue.MetaFile), b, 0o644); err != nil {
		t.Fatalf("write meta: %v", err)
	}
	for _, im := range images {
		if err := os.WriteFile(filepath.Join(dir, queue.ImageDir, im), []byte("img"), 0o644); err != nil {
			t.Fatalf("write image: %v", err)
		}
	}
}

func f64(v float64) *float64 { return &v }

func TestRunOnceEmptyQueue(t *testing.T) {
	pub := &fakePublisher{}
	d, _ := testDispatcher(t, pub, time.Now())

	wait, err := d.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if wait != nil {
		t.Fatalf("expected nil wait, got %v", *wait)
	}
	if pub.calls != 0 {
		t.Fatalf("publisher called %d times", pub.calls)
	}
}

func TestRunOnceNotDue(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	pub := &fakePublisher{}
	d, cfg := testDispatcher(t, pub, now)

	at := now.Add(time.Hour)
	writeRecord(t, cfg.UnprocessedDir, 0, queue.Meta{UploadAt: &at}, "a.jpg")

	wait, err := d.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if wait == nil {
		t.Fatal("expected a wait duration")
	}
	if want := time.Hour + time.Second; *wait != want {
		t.Fatalf("wait = %v, want %v", *wait, want)
	}
	if pub.calls != 0 {
		t.Fatalf("publisher called %d times", pub.calls)
	}
}

func TestRunOnceDueValid(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	pub := &fakePublisher{}
	d, cfg := testDispatcher(t, pub, now)

	at := now.Add(-time.Minute)
	writeRecord(t, cfg.UnprocessedDir, 0, queue.Meta{
		Caption:  "hello",
		LocLat:   f64(-36.85),
		LocLong:  f64(174.76),
		UploadAt: &at,
	}, "a.jpg")

	wait, err := d.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if wait != nil {
		t.Fatalf("expected nil wait, got %v", *wait)
	}
	if pub.calls != 1 {
		t.Fatalf("publisher called %d times, want 1", pub.calls)
	}
	if pub.lastPost.ID != 0 || len(pub.lastPaths) != 1 {
		t.Fatalf("unexpected publish args: post=%+v paths=%v", pub.lastPost, pub.lastPaths)
	}

	if _, err := queue.Load(0, cfg.UnprocessedDir); !errors.Is(err, queue.ErrNotFound) {
		t.Fatalf("record still pending: %v", err)
	}
	if _, err := queue.Load(0, cfg.ProcessedDir); err != nil {
		t.Fatalf("record not in published root: %v", err)
	}
}

func TestRunOnceDueInvalid(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	pub := &fakePublisher{}
	d, cfg := testDispatcher(t, pub, now)

	at := now.Add(-time.Minute)
	writeRecord(t, cfg.UnprocessedDir, 0, queue.Meta{UploadAt: &at}) // no images

	wait, err := d.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if wait != nil {
		t.Fatalf("expected nil wait, got %v", *wait)
	}
	if pub.calls != 0 {
		t.Fatalf("publisher called %d times", pub.calls)
	}
	if _, err := queue.Load(0, cfg.UnprocessedDir); err != nil {
		t.Fatalf("invalid record should stay pending: %v", err)
	}
}

func TestRunOncePublishErrorKeepsRecordPending(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	pub := &fakePublisher{err: errors.New("login failed")}
	d, cfg := testDispatcher(t, pub, now)

	writeRecord(t, cfg.UnprocessedDir, 0, queue.Meta{}, "a.jpg")

	wait, err := d.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce should swallow publish errors, got %v", err)
	}
	if wait != nil {
		t.Fatalf("expected nil wait, got %v", *wait)
	}
	if pub.calls != 1 {
		t.Fatalf("publisher called %d times, want 1", pub.calls)
	}
	if _, err := queue.Load(0, cfg.UnprocessedDir); err != nil {
		t.Fatalf("record should stay pending after failed publish: %v", err)
	}
}

func TestRunOnceNilUploadAtIsDue(t *testing.T) {
	pub := &fakePublisher{}
	d, cfg := testDispatcher(t, pub, time.Now())

	writeRecord(t, cfg.UnprocessedDir, 0, queue.Meta{}, "a.jpg")

	if _, err := d.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if pub.calls != 1 {
		t.Fatalf("publisher called %d times, want 1", pub.calls)
	}
}

func TestRunOnceHeadOnly(t *testing.T) {
	now := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	pub := &fakePublisher{}
	d, cfg := testDispatcher(t, pub, now)

	// Head is not due; a later record is due but must not be considered.
	future := now.Add(2 * time.Hour)
	past := now.Add(-time.Hour)
	writeRecord(t, cfg.UnprocessedDir, 0, queue.Meta{UploadAt: &future, LocLat: f64(1), LocLong: f64(1)}, "a.jpg")
	writeRecord(t, cfg.UnprocessedDir, 1, queue.Meta{UploadAt: &past, LocLat: f64(1), LocLong: f64(1)}, "b.jpg")

	wait, err := d.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if pub.calls != 0 {
		t.Fatalf("publisher called %d times", pub.calls)
	}
	if wait == nil || *wait != 2*time.Hour+time.Second {
		t.Fatalf("unexpected wait: %v", wait)
	}
}

func TestLoopStopsOnContextCancel(t *testing.T) {
	pub := &fakePublisher{}
	d, cfg := testDispatcher(t, pub, time.Now())
	cfg.CheckInterval = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := d.Loop(ctx); err != nil {
		t.Fatalf("Loop: %v", err)
	}
}

func TestLoopFatalOnCorruptQueue(t *testing.T) {
	pub := &fakePublisher{}
	d, cfg := testDispatcher(t, pub, time.Now())

	if err := os.Mkdir(filepath.Join(cfg.UnprocessedDir, "junk"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := d.Loop(context.Background()); err == nil {
		t.Fatal("expected Loop to fail on a corrupt queue")
	}
}

func TestLoopRejectsBadCheckSpec(t *testing.T) {
	pub := &fakePublisher{}
	d, cfg := testDispatcher(t, pub, time.Now())
	cfg.CheckSpec = "not-a-schedule"

	if err := d.Loop(context.Background()); err == nil {
		t.Fatal("expected error for invalid check_spec")
	}
}

func TestRunOnceEnumerationErrorIsFatal(t *testing.T) {
	pub := &fakePublisher{}
	d, cfg := testDispatcher(t, pub, time.Now())

	if err := os.Mkdir(filepath.Join(cfg.UnprocessedDir, "not-a-post"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	if _, err := d.RunOnce(context.Background()); err == nil {
		t.Fatal("expected enumeration error")
	}
}
