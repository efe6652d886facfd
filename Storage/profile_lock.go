package Storage

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"AviCRM/Models"

	"github.com/gofrs/flock"
)

const lockRetryDelay = 10 * time.Millisecond

// ProfileLocks serializes work on one profile directory. Goroutines queue on
// an in-process mutex; other processes sharing the data dir (the reconcile
// command next to a running server) are held off by an advisory file lock
// under <dataDir>/.locks.
type ProfileLocks struct {
	dir   string
	local *KeyedMutex
}

func NewProfileLocks(dataDir string) *ProfileLocks {
	return &ProfileLocks{
		dir:   filepath.Join(dataDir, ".locks"),
		local: NewKeyedMutex(),
	}
}

// Lock blocks until profileDir is free in this process and in every other
// one, or ctx is done.
func (p *ProfileLocks) Lock(ctx context.Context, profileDir string) (func(), error) {
	unlockLocal := p.local.Lock(profileDir)

	if err := os.MkdirAll(p.dir, 0755); err != nil {
		unlockLocal()
		return nil, &Models.StorageFault{Op: "mkdir", Path: p.dir, Err: err}
	}

	path := filepath.Join(p.dir, filepath.Base(profileDir)+".lock")
	fileLock := flock.New(path)
	locked, err := fileLock.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !locked {
		unlockLocal()
		if err == nil {
			err = fmt.Errorf("lock not acquired")
		}
		return nil, &Models.StorageFault{Op: "lock", Path: path, Err: err}
	}

	return func() {
		if err := fileLock.Unlock(); err != nil {
			log.Printf("Error releasing profile lock %s: %v", path, err)
		}
		unlockLocal()
	}, nil
}
