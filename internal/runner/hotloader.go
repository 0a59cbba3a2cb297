package runner

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/zot/aplua/internal/config"
)

// HotLoader watches script directories and reports changed .lua files.
// Symlinked scripts are followed: the target's directory is watched too and a
// change there is reported under the link's path.
type HotLoader struct {
	config   *config.Config
	dirs     []string
	watcher  *fsnotify.Watcher
	onChange func(path string)

	symlinkTargets map[string]string // link path -> target dir
	watchedDirs    map[string]int    // dir -> reference count
	mu             sync.Mutex

	pending       map[string]time.Time
	pendingMu     sync.Mutex
	debounceDelay time.Duration

	done     chan struct{}
	stopOnce sync.Once
}

// NewHotLoader creates a hot loader for dirs. onChange runs on the loader's
// goroutine once a burst of writes to a file has settled.
func NewHotLoader(cfg *config.Config, dirs []string, onChange func(path string)) (*HotLoader, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	var clean []string
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		dir = filepath.Clean(dir)
		if !slices.Contains(clean, dir) {
			clean = append(clean, dir)
		}
	}
	return &HotLoader{
		config:         cfg,
		dirs:           clean,
		watcher:        watcher,
		onChange:       onChange,
		symlinkTargets: make(map[string]string),
		watchedDirs:    make(map[string]int),
		pending:        make(map[string]time.Time),
		debounceDelay:  100 * time.Millisecond,
		done:           make(chan struct{}),
	}, nil
}

// Start begins watching. Directories that do not exist are skipped.
func (h *HotLoader) Start() error {
	watching := 0
	for _, dir := range h.dirs {
		if _, err := os.Stat(dir); err != nil {
			h.config.Log(2, "HotLoader: skipping %s: %v", dir, err)
			continue
		}
		if err := h.addWatch(dir); err != nil {
			return err
		}
		h.scanSymlinks(dir)
		watching++
	}
	go h.eventLoop()
	go h.debounceLoop()
	h.config.Log(1, "HotLoader: watching %d director(ies) for changes", watching)
	return nil
}

// Stop stops the loader. It is safe to call more than once.
func (h *HotLoader) Stop() error {
	var err error
	h.stopOnce.Do(func() {
		close(h.done)
		err = h.watcher.Close()
	})
	return err
}

func (h *HotLoader) scanSymlinks(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		h.config.Log(1, "HotLoader: error scanning %s: %v", dir, err)
		return
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".lua") {
			h.updateSymlinkWatch(filepath.Join(dir, entry.Name()))
		}
	}
}

func (h *HotLoader) updateSymlinkWatch(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	info, err := os.Lstat(path)
	if err != nil {
		return
	}
	if old, ok := h.symlinkTargets[path]; ok {
		h.removeWatchLocked(old)
		delete(h.symlinkTargets, path)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return
	}
	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		h.config.Log(2, "HotLoader: cannot resolve symlink %s: %v", path, err)
		return
	}
	targetDir := filepath.Dir(target)
	h.symlinkTargets[path] = targetDir
	if err := h.addWatchLocked(targetDir); err != nil {
		h.config.Log(1, "HotLoader: cannot watch %s: %v", targetDir, err)
	}
}

func (h *HotLoader) removeSymlinkWatch(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if targetDir, ok := h.symlinkTargets[path]; ok {
		h.removeWatchLocked(targetDir)
		delete(h.symlinkTargets, path)
	}
}

func (h *HotLoader) addWatch(dir string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.addWatchLocked(dir)
}

func (h *HotLoader) addWatchLocked(dir string) error {
	h.watchedDirs[dir]++
	if h.watchedDirs[dir] == 1 {
		if err := h.watcher.Add(dir); err != nil {
			h.watchedDirs[dir]--
			return err
		}
		h.config.Log(2, "HotLoader: added watch for %s", dir)
	}
	return nil
}

func (h *HotLoader) removeWatchLocked(dir string) {
	h.watchedDirs[dir]--
	if h.watchedDirs[dir] <= 0 {
		h.watcher.Remove(dir)
		delete(h.watchedDirs, dir)
		h.config.Log(2, "HotLoader: removed watch for %s", dir)
	}
}

func (h *HotLoader) eventLoop() {
	for {
		select {
		case <-h.done:
			return
		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			h.handleEvent(event)
		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.config.Log(1, "HotLoader: watcher error: %v", err)
		}
	}
}

func (h *HotLoader) handleEvent(event fsnotify.Event) {
	if !strings.HasSuffix(event.Name, ".lua") {
		return
	}
	h.config.Log(3, "HotLoader: event %s on %s", event.Op, event.Name)

	if slices.Contains(h.dirs, filepath.Dir(event.Name)) {
		switch {
		case event.Has(fsnotify.Create):
			h.updateSymlinkWatch(event.Name)
		case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
			h.removeSymlinkWatch(event.Name)
		}
	}
	if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
		h.queue(event.Name)
	}
}

func (h *HotLoader) queue(path string) {
	h.pendingMu.Lock()
	h.pending[path] = time.Now()
	h.pendingMu.Unlock()
}

func (h *HotLoader) debounceLoop() {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			h.flush()
		}
	}
}

// flush reports files that have been quiet for at least debounceDelay.
func (h *HotLoader) flush() {
	h.pendingMu.Lock()
	now := time.Now()
	var ready []string
	for path, queuedAt := range h.pending {
		if now.Sub(queuedAt) >= h.debounceDelay {
			ready = append(ready, path)
			delete(h.pending, path)
		}
	}
	h.pendingMu.Unlock()

	for _, path := range ready {
		if resolved := h.resolve(path); resolved != "" {
			h.config.Log(1, "HotLoader: %s changed", resolved)
			h.onChange(resolved)
		}
	}
}

// resolve maps a changed path to the watched script path, or "" when the
// change concerns no script.
func (h *HotLoader) resolve(changed string) string {
	if slices.Contains(h.dirs, filepath.Dir(changed)) {
		if _, err := os.Stat(changed); err != nil {
			return ""
		}
		return changed
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	changedDir := filepath.Dir(changed)
	changedBase := filepath.Base(changed)
	for link, targetDir := range h.symlinkTargets {
		if targetDir != changedDir {
			continue
		}
		if target, err := filepath.EvalSymlinks(link); err == nil && filepath.Base(target) == changedBase {
			return link
		}
	}
	return ""
}
