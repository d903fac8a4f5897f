package rendezvous

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/time/rate"
)

const fileStoreLockName = ".collbench.lock"

// FileOptions configure a FileStore.
type FileOptions struct {
	KeyTTL       time.Duration // 0 keeps keys until removed by an operator
	PollInterval time.Duration // 0 uses DefaultPollInterval
}

// FileStore keeps one file per key in a directory visible to every
// participant, such as an NFS mount. With a KeyTTL, a key whose file is
// older than the TTL counts as absent and may be set again.
type FileStore struct {
	dir     string
	ttl     time.Duration
	lock    *flock.Flock
	limiter *rate.Limiter
	now     func() time.Time
}

// NewFileStore creates dir if needed and returns a store rooted there.
func NewFileStore(dir string, opts FileOptions) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("file store: path is required")
	}
	if opts.KeyTTL < 0 {
		return nil, fmt.Errorf("file store: negative key ttl %s", opts.KeyTTL)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file store: %w", err)
	}
	return &FileStore{
		dir:     dir,
		ttl:     opts.KeyTTL,
		lock:    flock.New(filepath.Join(dir, fileStoreLockName)),
		limiter: newPollLimiter(opts.PollInterval),
		now:     time.Now,
	}, nil
}

func (f *FileStore) expired(info fs.FileInfo) bool {
	return f.ttl > 0 && f.now().Sub(info.ModTime()) > f.ttl
}

func (f *FileStore) path(key string) string {
	return filepath.Join(f.dir, url.PathEscape(key))
}

func (f *FileStore) Set(ctx context.Context, key string, value []byte) error {
	locked, err := f.lock.TryLockContext(ctx, DefaultPollInterval)
	if err != nil {
		return fmt.Errorf("file store lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("file store lock: not acquired")
	}
	defer f.lock.Unlock()

	target := f.path(key)
	if info, err := os.Stat(target); err == nil {
		if !f.expired(info) {
			return fmt.Errorf("%w: %s", ErrKeyExists, key)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("file store stat %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("file store: %w", err)
	}
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("file store write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("file store write %s: %w", key, err)
	}
	// Rename publishes the value atomically to readers polling target.
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("file store publish %s: %w", key, err)
	}
	return nil
}

func (f *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	target := f.path(key)
	return pollUntil(ctx, f.limiter, func() ([]byte, bool, error) {
		info, err := os.Stat(target)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("file store stat %s: %w", key, err)
		}
		if f.expired(info) {
			return nil, false, nil
		}
		data, err := os.ReadFile(target)
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("file store read %s: %w", key, err)
		}
		return data, true, nil
	})
}

// Close releases the lock handle. Published keys stay on disk.
func (f *FileStore) Close() error { return f.lock.Close() }
