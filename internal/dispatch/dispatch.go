// Package dispatch drives the upload cycle: inspect the head of the pending
// queue, decide due/not-due/invalid, publish, and relocate.
package dispatch

import (
	"context"
	"time"

	"github.com/Sean-McConnachie/delayedgram/internal/config"
	"github.com/Sean-McConnachie/delayedgram/internal/notify"
	"github.com/Sean-McConnachie/delayedgram/internal/publish"
	"github.com/Sean-McConnachie/delayedgram/internal/queue"
	"github.com/Sean-McConnachie/delayedgram/internal/storage"
	"github.com/Sean-McConnachie/delayedgram/pkg/logx"
)

// Dispatcher runs upload cycles against the configured queue roots.
//
// Audit and Notify are optional (nil disables them). Now defaults to
// time.Now and exists so tests can pin the clock.
type Dispatcher struct {
	Cfg    *config.Settings
	Log    logx.Logger
	Pub    publish.Publisher
	Audit  storage.Store
	Notify *notify.Service
	Now    func() time.Time
}

func New(cfg *config.Settings, pub publish.Publisher, log logx.Logger) *Dispatcher {
	return &Dispatcher{Cfg: cfg, Pub: pub, Log: log}
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// RunOnce performs a single dispatch cycle.
//
// The returned duration is non-nil only when the head record exists but is
// not yet due: it is the wait until that record becomes due (plus a second
// of padding against clock skew). Queue enumeration errors are fatal for
// the invocation and returned as-is; validation and publish failures are
// handled here (logged, record stays pending) and yield a nil wait.
//
// Only the head (lowest id) record is ever inspected: posts go out strictly
// in id order, so a due record behind a not-due head stays queued.
func (d *Dispatcher) RunOnce(ctx context.Context) (*time.Duration, error) {
	pending, err := queue.LoadAll(d.Cfg.UnprocessedDir)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		d.Log.Info("No uploads to process")
		return nil, nil
	}

	post := pending[0]
	now := d.now()

	// A nil upload_at only appears after a human edit; treat it as due.
	if post.Meta.UploadAt != nil && post.Meta.UploadAt.After(now) {
		d.Log.Info("Upload not ready",
			logx.Int("post", post.ID),
			logx.Time("upload_at", *post.Meta.UploadAt),
		)
		wait := post.Meta.UploadAt.Sub(now) + time.Second
		return &wait, nil
	}

	if !post.Validate() {
		// Intentional backpressure: the head stays pending and is re-checked
		// (and re-rejected) every cycle until a human fixes it.
		d.Log.Warn("Invalid post. Ensure there is at least one image and a location (or set location to null)",
			logx.Int("post", post.ID),
			logx.Int("images", len(post.Images)),
		)
		return nil, nil
	}

	start := time.Now()
	err = d.Pub.Publish(ctx, post, post.ImagePaths(d.Cfg.UnprocessedDir))
	if err == nil {
		err = queue.Relocate(post.ID, d.Cfg.UnprocessedDir, d.Cfg.ProcessedDir)
	}
	took := time.Since(start).Milliseconds()

	if err != nil {
		d.Log.Error("Error uploading", logx.Int("post", post.ID), logx.Err(err))
		d.appendAudit(ctx, post, false, err, took)
		d.Notify.PublishFailed(post.ID, err)
		return nil, nil
	}

	d.Log.Info("Published post",
		logx.Int("post", post.ID),
		logx.Int("images", len(post.Images)),
		logx.Int64("took_ms", took),
	)
	d.appendAudit(ctx, post, true, nil, took)
	d.Notify.PublishSucceeded(post.ID, len(post.Images))
	return nil, nil
}

func (d *Dispatcher) appendAudit(ctx context.Context, post queue.Post, ok bool, pubErr error, tookMS int64) {
	if d.Audit == nil {
		return
	}
	e := storage.PublishEntry{
		At:     d.now(),
		PostID: post.ID,
		Images: len(post.Images),
		Album:  len(post.Images) > 1,
		OK:     ok,
		TookMS: tookMS,
	}
	if pubErr != nil {
		e.Error = pubErr.Error()
	}
	if err := d.Audit.AppendPublish(ctx, e); err != nil {
		d.Log.Warn("audit append failed", logx.Err(err))
	}
}

// Loop runs dispatch cycles until ctx is cancelled or the queue turns out to
// be unreadable. Between cycles it sleeps for the smaller of the head
// record's remaining wait and the check trigger's wait; a queue watcher
// (when enabled) can cut the sleep short.
func (d *Dispatcher) Loop(ctx context.Context) error {
	trig := FixedTrigger(d.Cfg.CheckInterval)
	if d.Cfg.CheckSpec != "" {
		var err error
		if trig, err = NewTrigger(d.Cfg.CheckSpec); err != nil {
			return err
		}
	}

	var wake <-chan struct{}
	if d.Cfg.WatchQueue {
		ch := make(chan struct{}, 1)
		go watchQueue(ctx, d.Cfg.UnprocessedDir, ch, d.Log)
		wake = ch
	}

	for {
		wait, err := d.RunOnce(ctx)
		if err != nil {
			return err
		}

		sleep := trig.NextWait(d.now())
		if wait != nil && *wait < sleep {
			sleep = *wait
		}
		d.Log.Info("Sleeping for", logx.Duration("duration", sleep))

		timer := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		case <-wake:
			timer.Stop()
			d.Log.Debug("queue changed; checking early")
		}
	}
}
