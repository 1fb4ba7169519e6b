//go:build deadlock_test

package lock

import (
	"time"

	"github.com/sasha-s/go-deadlock"
)

func init() {
	// tasks can legitimately hold a claim for the duration of a clone, the
	// queue lock itself is never held across task execution
	deadlock.Opts.DeadlockTimeout = 30 * time.Second
}

type Mutex = deadlock.Mutex

type RWMutex = deadlock.RWMutex
