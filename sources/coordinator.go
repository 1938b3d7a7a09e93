package sources

import (
	"context"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"ragstudio/client"
	"ragstudio/pubsub"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Backend is the slice of the gateway client the coordinator drives.
// *client.Client satisfies it.
type Backend interface {
	Upload(ctx context.Context, filename string, r io.Reader, size int64, onProgress func(percent int)) (*client.UploadResponse, error)
	Documents(ctx context.Context) ([]client.DocumentInfo, error)
	Delete(ctx context.Context, filename string) (*client.DeleteResponse, error)
	TriggerIndex(ctx context.Context, directory string) (*client.IndexResponse, error)
}

// Snapshot is what the coordinator publishes after every mutation: the full
// ordered source list plus the current selection. Consumers replace their
// copy wholesale, so dropped events are harmless.
type Snapshot struct {
	Sources  []Source
	Selected map[string]bool
}

// Coordinator owns the list of known sources and the user's selection set.
// It drives uploads through their uploading → indexing → ready lifecycle,
// reconciles local state against the backend's document list keyed by
// filename, and keeps the invariant that only ready sources stay selected.
type Coordinator struct {
	mu             sync.Mutex
	backend        Backend
	broker         *pubsub.Broker[Snapshot]
	list           []Source
	selected       map[string]struct{}
	reconcileDelay time.Duration
	log            *zap.Logger
}

// CoordinatorOption customizes a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithReconcileDelay changes how long after a successful upload the
// post-upload document check fires.
func WithReconcileDelay(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) { c.reconcileDelay = d }
}

// WithLogger attaches a zap logger.
func WithLogger(log *zap.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.log = log }
}

// NewCoordinator creates a Coordinator over the given backend.
func NewCoordinator(backend Backend, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		backend:        backend,
		broker:         pubsub.NewBroker[Snapshot](),
		selected:       make(map[string]struct{}),
		reconcileDelay: 3 * time.Second,
		log:            zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe returns a channel of state snapshots, closed when ctx is done.
func (c *Coordinator) Subscribe(ctx context.Context) <-chan pubsub.Event[Snapshot] {
	return c.broker.Subscribe(ctx)
}

// Close shuts down the event broker.
func (c *Coordinator) Close() {
	c.broker.Shutdown()
}

// Sources returns a copy of the current source list, newest uploads first.
func (c *Coordinator) Sources() []Source {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Source, len(c.list))
	copy(out, c.list)
	return out
}

// SelectedSources returns the selected sources in list order.
func (c *Coordinator) SelectedSources() []Source {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Source
	for _, s := range c.list {
		if _, ok := c.selected[s.ID]; ok {
			out = append(out, s)
		}
	}
	return out
}

// IsSelected reports whether the source id is in the selection set.
func (c *Coordinator) IsSelected(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.selected[id]
	return ok
}

// SelectedCount returns the size of the selection set.
func (c *Coordinator) SelectedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.selected)
}

// AddGlobs expands glob patterns (doublestar syntax, e.g. "docs/**/*.pdf")
// and uploads every accepted match. Plain paths work unchanged.
func (c *Coordinator) AddGlobs(ctx context.Context, patterns []string) {
	var paths []string
	seen := make(map[string]struct{})
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			c.log.Warn("bad glob pattern", zap.String("pattern", pattern), zap.Error(err))
			continue
		}
		for _, m := range matches {
			if _, dup := seen[m]; !dup {
				seen[m] = struct{}{}
				paths = append(paths, m)
			}
		}
	}
	sort.Strings(paths)
	c.AddFiles(ctx, paths)
}

// AddFiles uploads a batch of local files. Files whose extension is not in
// the accepted set are silently dropped. Each accepted file uploads on its
// own goroutine with independent identity, progress and state.
func (c *Coordinator) AddFiles(ctx context.Context, paths []string) {
	for _, path := range paths {
		if !Accepted(path) {
			continue
		}
		go func(path string) {
			f, err := os.Open(path)
			if err != nil {
				c.log.Warn("cannot open file", zap.String("path", path), zap.Error(err))
				return
			}
			defer f.Close()

			info, err := f.Stat()
			if err != nil {
				c.log.Warn("cannot stat file", zap.String("path", path), zap.Error(err))
				return
			}
			_ = c.Upload(ctx, info.Name(), f, info.Size())
		}(path)
	}
}

// Upload runs one source through its upload lifecycle: an optimistic
// uploading Source appears at the head of the list immediately, progress
// streams into it, and on success it moves to indexing with a one-shot
// delayed document check scheduled. On transport failure it moves to error
// and stays there. Files outside the accepted set are dropped.
func (c *Coordinator) Upload(ctx context.Context, filename string, r io.Reader, size int64) error {
	if !Accepted(filename) {
		return nil
	}

	id := uuid.NewString()
	src := Source{
		ID:         id,
		Filename:   filename,
		UploadedAt: time.Now(),
		Status:     StatusUploading,
		Category:   CategoryOther,
	}

	c.mu.Lock()
	c.list = append([]Source{src}, c.list...)
	c.publishLocked(pubsub.StartedEvent)
	c.mu.Unlock()

	_, err := c.backend.Upload(ctx, filename, r, size, func(percent int) {
		c.mu.Lock()
		if s := c.findLocked(id); s != nil && s.Status == StatusUploading {
			s.Progress = percent
			c.publishLocked(pubsub.UpdatedEvent)
		}
		c.mu.Unlock()
	})

	c.mu.Lock()
	if err != nil {
		c.log.Warn("upload failed", zap.String("filename", filename), zap.Error(err))
		c.setStatusLocked(id, StatusError)
		c.publishLocked(pubsub.UpdatedEvent)
		c.mu.Unlock()
		return err
	}
	c.setStatusLocked(id, StatusIndexing)
	c.publishLocked(pubsub.UpdatedEvent)
	c.mu.Unlock()

	// Ingestion is fire-and-forget on the backend; after a delay, check the
	// document list once and promote the source to ready regardless, so a
	// transient fetch failure can never wedge it in indexing.
	time.AfterFunc(c.reconcileDelay, func() {
		c.finishIngestion(id, filename)
	})
	return nil
}

// finishIngestion is the post-upload check: enrich the source from the
// server record when available, mark it ready either way, and pre-select it
// for immediate querying.
func (c *Coordinator) finishIngestion(id, filename string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	docs, err := c.backend.Documents(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.findLocked(id)
	if s == nil {
		// Source was deleted or the coordinator was reset meanwhile.
		return
	}
	if s.Status != StatusIndexing {
		return
	}

	if err == nil {
		for _, doc := range docs {
			if doc.Filename == filename {
				s.SizeBytes = doc.SizeBytes
				if ts, perr := time.Parse(time.RFC3339, doc.UpdatedAt); perr == nil {
					s.UploadedAt = ts
				}
				break
			}
		}
	} else {
		c.log.Warn("post-upload document check failed", zap.String("filename", filename), zap.Error(err))
	}

	s.Status = StatusReady
	s.Progress = 0
	c.selected[id] = struct{}{}
	c.publishLocked(pubsub.UpdatedEvent)
}

// Reconcile fetches the authoritative document list and projects it into
// local state: unknown server documents appear as ready sources, and a local
// indexing source whose filename now exists server-side is promoted and
// enriched. Matching is by filename; the same filename never yields two
// sources. Reconciled sources are not auto-selected.
func (c *Coordinator) Reconcile(ctx context.Context) error {
	docs, err := c.backend.Documents(ctx)
	if err != nil {
		c.log.Warn("reconcile failed", zap.Error(err))
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	byFilename := make(map[string]int, len(c.list))
	for i := range c.list {
		byFilename[c.list[i].Filename] = i
	}

	changed := false
	for _, doc := range docs {
		if i, ok := byFilename[doc.Filename]; ok {
			s := &c.list[i]
			if s.Status == StatusIndexing {
				s.Status = StatusReady
				s.Progress = 0
				s.SizeBytes = doc.SizeBytes
				if ts, perr := time.Parse(time.RFC3339, doc.UpdatedAt); perr == nil {
					s.UploadedAt = ts
				}
				changed = true
			}
			continue
		}

		src := Source{
			ID:        uuid.NewString(),
			Filename:  doc.Filename,
			SizeBytes: doc.SizeBytes,
			Status:    StatusReady,
			Category:  CategoryOther,
		}
		if ts, perr := time.Parse(time.RFC3339, doc.UpdatedAt); perr == nil {
			src.UploadedAt = ts
		}
		c.list = append(c.list, src)
		byFilename[src.Filename] = len(c.list) - 1
		changed = true
	}

	if changed {
		c.publishLocked(pubsub.UpdatedEvent)
	}
	return nil
}

// Toggle flips a source's membership in the selection set. Only ready
// sources may be added; removal is always allowed.
func (c *Coordinator) Toggle(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.selected[id]; ok {
		delete(c.selected, id)
	} else {
		s := c.findLocked(id)
		if s == nil || s.Status != StatusReady {
			return
		}
		c.selected[id] = struct{}{}
	}
	c.publishLocked(pubsub.UpdatedEvent)
}

// ToggleAll selects every ready source in the category ("all" for no
// category restriction), or deselects them when they are all selected
// already.
func (c *Coordinator) ToggleAll(category string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var ready []string
	allSelected := true
	for _, s := range c.list {
		if s.Status != StatusReady {
			continue
		}
		if category != "all" && s.Category != category {
			continue
		}
		ready = append(ready, s.ID)
		if _, ok := c.selected[s.ID]; !ok {
			allSelected = false
		}
	}
	if len(ready) == 0 {
		return
	}

	for _, id := range ready {
		if allSelected {
			delete(c.selected, id)
		} else {
			c.selected[id] = struct{}{}
		}
	}
	c.publishLocked(pubsub.UpdatedEvent)
}

// SetCategory retags a source.
func (c *Coordinator) SetCategory(id, category string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s := c.findLocked(id); s != nil {
		s.Category = category
		c.publishLocked(pubsub.UpdatedEvent)
	}
}

// Delete removes a document from the backend and, only once the backend
// confirms, from the local list and the selection set. A failed delete
// leaves everything unchanged. The response carries the backend's removal
// counts for the UI to surface.
func (c *Coordinator) Delete(ctx context.Context, id, filename string) (*client.DeleteResponse, error) {
	resp, err := c.backend.Delete(ctx, filename)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.list {
		if c.list[i].ID == id {
			c.list = append(c.list[:i], c.list[i+1:]...)
			break
		}
	}
	delete(c.selected, id)
	c.publishLocked(pubsub.UpdatedEvent)
	return resp, nil
}

// Reindex triggers a backend reindex. Fire-and-forget: failures are logged
// and swallowed, and no local state changes.
func (c *Coordinator) Reindex(ctx context.Context) {
	if _, err := c.backend.TriggerIndex(ctx, ""); err != nil {
		c.log.Warn("reindex trigger failed", zap.Error(err))
	}
}

func (c *Coordinator) findLocked(id string) *Source {
	for i := range c.list {
		if c.list[i].ID == id {
			return &c.list[i]
		}
	}
	return nil
}

// setStatusLocked applies a status transition and keeps the selection
// invariant: a source leaving ready also leaves the selection set. Progress
// is meaningful only while uploading, so it is cleared on every transition.
func (c *Coordinator) setStatusLocked(id string, status Status) {
	s := c.findLocked(id)
	if s == nil {
		return
	}
	s.Status = status
	s.Progress = 0
	if status != StatusReady {
		delete(c.selected, id)
	}
}

func (c *Coordinator) publishLocked(t pubsub.EventType) {
	snap := Snapshot{
		Sources:  make([]Source, len(c.list)),
		Selected: make(map[string]bool, len(c.selected)),
	}
	copy(snap.Sources, c.list)
	for id := range c.selected {
		snap.Selected[id] = true
	}
	c.broker.Publish(t, snap)
}
