// Package registry allocates run identifiers and run directories. The
// identifier comes from a counter file shared across processes, so two
// harness invocations racing at startup never collide.
package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/safebench/mmbench/internal/domain"
)

// ErrRegistryUnavailable means a unique run identifier could not be
// obtained safely. The run must not start.
var ErrRegistryUnavailable = errors.New("run registry unavailable")

const counterFile = ".run_counter"

// Registry hands out monotonically increasing run identifiers rooted at
// an output directory.
type Registry struct {
	Root string
	// now is swappable for tests.
	now func() time.Time
}

// New creates a registry over the given output root.
func New(root string) *Registry {
	return &Registry{Root: root, now: time.Now}
}

// Allocate reserves the next run identifier and creates the run
// directory. The counter file is read, incremented and written back under
// an exclusive advisory lock held only for that read-modify-write.
func (r *Registry) Allocate(provider, model string) (*domain.RunRecord, error) {
	if err := os.MkdirAll(r.Root, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating output root: %v", ErrRegistryUnavailable, err)
	}

	id, err := r.nextID()
	if err != nil {
		return nil, err
	}

	now := r.now().UTC()
	dir := filepath.Join(r.Root, fmt.Sprintf("run_%d_%s_%s",
		id, sanitize(model), now.Format("20060102_150405")))
	// Mkdir, not MkdirAll: an existing directory means a collision and
	// must fail loudly.
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating run dir %s: %v", ErrRegistryUnavailable, dir, err)
	}

	rec := domain.NewRunRecord(id, dir, provider, model)
	rec.StartedAt = now
	return rec, nil
}

// nextID performs the locked read-increment-write on the counter file.
func (r *Registry) nextID() (int64, error) {
	path := filepath.Join(r.Root, counterFile)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return 0, fmt.Errorf("%w: opening counter: %v", ErrRegistryUnavailable, err)
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		return 0, fmt.Errorf("%w: locking counter: %v", ErrRegistryUnavailable, err)
	}
	defer unix.Flock(int(f.Fd()), unix.LOCK_UN)

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("%w: reading counter: %v", ErrRegistryUnavailable, err)
	}

	var current int64
	if content := strings.TrimSpace(string(data)); content != "" {
		current, err = strconv.ParseInt(content, 10, 64)
		if err != nil {
			// Never guess past a corrupt counter; uniqueness would be lost.
			return 0, fmt.Errorf("%w: corrupt counter content %q", ErrRegistryUnavailable, content)
		}
	}

	next := current + 1
	if err := writeCounter(f, next); err != nil {
		return 0, err
	}
	return next, nil
}

func writeCounter(f *os.File, value int64) error {
	if err := f.Truncate(0); err != nil {
		return fmt.Errorf("%w: truncating counter: %v", ErrRegistryUnavailable, err)
	}
	if _, err := f.WriteAt([]byte(strconv.FormatInt(value, 10)), 0); err != nil {
		return fmt.Errorf("%w: writing counter: %v", ErrRegistryUnavailable, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("%w: syncing counter: %v", ErrRegistryUnavailable, err)
	}
	return nil
}

// sanitize makes a model name safe for a directory name.
func sanitize(s string) string {
	replacer := strings.NewReplacer("/", "-", " ", "-", ":", "-")
	return replacer.Replace(s)
}
