package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Sean-McConnachie/delayedgram/pkg/logx"
)

// watchQueue watches the pending root and pokes wake when anything inside
// changes, so the cron loop re-checks the queue before its timer fires.
// Events are debounced: editors and file copies produce bursts of writes,
// and one wake per burst is enough.
//
// The watcher self-heals: if fsnotify breaks, it is recreated after a short
// backoff until ctx is cancelled.
func watchQueue(ctx context.Context, dir string, wake chan<- struct{}, log logx.Logger) {
	const (
		restartBackoff = time.Second
		debounceDelay  = 250 * time.Millisecond
	)

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	debounce := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(debounceDelay, func() {
			select {
			case wake <- struct{}{}:
			default:
				// a wake is already pending
			}
		})
	}

	for {
		if ctx.Err() != nil {
			return
		}

		w, err := fsnotify.NewWatcher()
		if err == nil {
			err = w.Add(dir)
			if err != nil {
				_ = w.Close()
			}
		}
		if err != nil {
			log.Warn("queue watch init failed", logx.Err(err), logx.String("dir", dir))
			select {
			case <-ctx.Done():
				return
			case <-time.After(restartBackoff):
				continue
			}
		}

		log.Debug("queue watcher started", logx.String("dir", dir))

		broken := false
		for !broken {
			select {
			case <-ctx.Done():
				_ = w.Close()
				return
			case ev, ok := <-w.Events:
				if !ok {
					broken = true
					break
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
					debounce()
				}
			case err, ok := <-w.Errors:
				if !ok {
					broken = true
					break
				}
				if err != nil {
					log.Warn("queue watch error", logx.Err(err), logx.String("dir", dir))
				}
			}
		}

		_ = w.Close()
		log.Warn("queue watcher stopped; restarting", logx.String("dir", dir))
		select {
		case <-ctx.Done():
			return
		case <-time.After(restartBackoff):
		}
	}
}
