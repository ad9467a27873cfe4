package recorder

import (
	"context"
	"fmt"
	"time"
)

// FormatElapsed renders d as HH:MM:SS.ss, truncated to hundredths.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Truncate(10 * time.Millisecond)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	sec := float64(d%time.Minute) / float64(time.Second)
	return fmt.Sprintf("%02d:%02d:%05.2f", int(h), int(m), sec)
}

// ticker periodically reports elapsed active time while a session records.
// It is owned by exactly one Session and joined synchronously on stop.
type ticker struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// startTicker calls fn every interval with clock.Now()-base. base is the
// recording start shifted forward by all pause time so far, which does not
// change while the ticker runs.
func startTicker(interval time.Duration, clock Clock, base time.Time, fn func(time.Duration)) *ticker {
	ctx, cancel := context.WithCancel(context.Background())
	t := &ticker{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(t.done)
		tk := time.NewTicker(interval)
		defer tk.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tk.C:
				// re-check so a tick racing with cancel is not delivered
				if ctx.Err() != nil {
					return
				}
				fn(clock.Now().Sub(base))
			}
		}
	}()
	return t
}

func (t *ticker) stop() {
	if t == nil {
		return
	}
	t.cancel()
	<-t.done
}
