package debuglog

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// Discovery-channel hiccups are expected transient conditions, not caller
// errors, so they are logged here tagged by component instead of being
// returned. Components are dotted names like "rosgraph.builtin".

const queueSize = 2048

type logger struct {
	once sync.Once
	ch   chan string
}

var (
	global  logger
	rlMu    sync.Mutex
	rlLast  = make(map[string]time.Time)
	rlSweep = time.Now()
)

func enabled() bool {
	return os.Getenv("ROSGRAPH_DEBUG") == "1"
}

func (l *logger) start() {
	l.once.Do(func() {
		l.ch = make(chan string, queueSize)
		go func() {
			for msg := range l.ch {
				_, _ = os.Stderr.WriteString(msg)
			}
		}()
	})
}

// Logf writes one tagged line. In debug mode the write is asynchronous so
// the transport callback goroutine never blocks on stderr.
func Logf(component, format string, args ...any) {
	msg := "[" + component + "] " + fmt.Sprintf(format+"\n", args...)
	if !enabled() {
		_, _ = os.Stderr.WriteString(msg)
		return
	}
	global.start()
	select {
	case global.ch <- msg:
	default:
		// Drop when saturated so discovery storms cannot back up the reader.
	}
}

// Debugf logs only when debug mode is on.
func Debugf(component, format string, args ...any) {
	if !enabled() {
		return
	}
	Logf(component, format, args...)
}

// RateLimitedf suppresses repeats of the same key within interval. Used
// for per-sample decode failures, which arrive in bursts.
func RateLimitedf(component, key string, interval time.Duration, format string, args ...any) {
	if key == "" {
		return
	}
	now := time.Now()
	rlMu.Lock()
	last := rlLast[key]
	if now.Sub(last) < interval {
		rlMu.Unlock()
		return
	}
	rlLast[key] = now
	if now.Sub(rlSweep) > 2*interval {
		for k, ts := range rlLast {
			if now.Sub(ts) > 4*interval {
				delete(rlLast, k)
			}
		}
		rlSweep = now
	}
	rlMu.Unlock()
	Logf(component, format, args...)
}
