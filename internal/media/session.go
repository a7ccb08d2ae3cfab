package media

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alextreichler/luxestore/internal/models"
	"github.com/google/uuid"
)

// ItemState is where an image is in its lifecycle. Created and Uploading are
// entered together when a file is accepted; Uploaded and Failed are final.
type ItemState int

const (
	StateCreated ItemState = iota
	StateUploading
	StateUploaded
	StateFailed
)

func (s ItemState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateUploading:
		return "uploading"
	case StateUploaded:
		return "uploaded"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// File is one selected upload.
type File struct {
	Name string
	Data []byte
}

type SessionOptions struct {
	Compress CompressOptions
	// Workers bounds concurrent compress+upload jobs of this session.
	Workers int
	// OnPublish gets the ordered remote URLs after every change to them.
	// It runs on the session goroutine and must not call back into the session.
	OnPublish func(images []string)
	// OnFailure is told about every item dropped because of an error.
	OnFailure func(itemID string, err error)
}

// ItemFailure records an item that was dropped because compressing or
// uploading it failed.
type ItemFailure struct {
	ItemID string `json:"item_id"`
	Error  string `json:"error"`
}

type entry struct {
	item  models.ImageItem
	state ItemState
}

// Messages understood by the session goroutine.
type (
	acceptMsg struct {
		entries []*entry
		reply   chan acceptResult
	}
	progressMsg struct {
		id       string
		progress models.UploadProgress
	}
	uploadedMsg struct {
		id  string
		url string
	}
	failedMsg struct {
		id  string
		err error
	}
	removeMsg struct {
		id    string
		reply chan error
	}
	snapshotMsg struct {
		reply chan snapshot
	}
	takeMsg struct {
		reply chan takeResult
	}
	unsealMsg struct {
		done chan struct{}
	}
	closeMsg struct {
		done chan struct{}
	}
)

type acceptResult struct {
	items []models.ImageItem
	err   error
}

type takeResult struct {
	images []string
	err    error
}

type snapshot struct {
	items     []models.ImageItem
	published []string
	failures  []ItemFailure
	pending   bool
}

// View is the state of a session as seen by one actor round trip, so the
// item list and the published images always agree.
type View struct {
	ID       string             `json:"id"`
	Items    []models.ImageItem `json:"items"`
	Images   []string           `json:"images"`
	Failures []ItemFailure      `json:"failures"`
	Pending  bool               `json:"pending"`
}

// Session tracks the images of one product form. All list mutations go
// through a single goroutine so concurrent completions can not lose updates.
type Session struct {
	id       string
	previews PreviewStore
	uploader Uploader
	opts     SessionOptions

	inbox chan any
	quit  chan struct{}
	sem   chan struct{}
	wg    sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	lastActive atomic.Int64
	closeOnce  sync.Once

	// owned by run()
	entries   []*entry
	published []string
	failures  []ItemFailure
	// sealed while the published images are being saved; the list is frozen
	sealed bool
}

func NewSession(previews PreviewStore, uploader Uploader, opts SessionOptions, existing []string) *Session {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		id:       uuid.New().String(),
		previews: previews,
		uploader: uploader,
		opts:     opts,
		inbox:    make(chan any),
		quit:     make(chan struct{}),
		sem:      make(chan struct{}, opts.Workers),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, u := range existing {
		s.entries = append(s.entries, &entry{
			item:  models.ImageItem{ID: uuid.New().String(), URL: u, Progress: 100},
			state: StateUploaded,
		})
	}
	s.published = s.remoteURLs()
	s.touch()
	go s.run()
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// Accept creates a local preview for every file, adds the items in file order
// and starts compressing and uploading them in the background.
func (s *Session) Accept(ctx context.Context, files []File) ([]models.ImageItem, error) {
	s.touch()
	entries := make([]*entry, 0, len(files))
	for _, f := range files {
		u, err := s.previews.Allocate(ctx, f.Data, http.DetectContentType(f.Data))
		if err != nil {
			s.releaseEntries(entries)
			return nil, err
		}
		entries = append(entries, &entry{
			item:  models.ImageItem{ID: uuid.New().String(), URL: u, Uploading: true, IsLocal: true},
			state: StateUploading,
		})
	}

	reply := make(chan acceptResult, 1)
	if !s.send(acceptMsg{entries: entries, reply: reply}) {
		s.releaseEntries(entries)
		return nil, ErrSessionClosed
	}
	res := <-reply
	if res.err != nil {
		s.releaseEntries(entries)
		return nil, res.err
	}
	created := res.items

	for i, e := range entries {
		s.wg.Add(1)
		go s.process(e.item.ID, files[i])
	}
	return created, nil
}

func (s *Session) process(id string, f File) {
	defer s.wg.Done()

	select {
	case s.sem <- struct{}{}:
	case <-s.quit:
		return
	}
	defer func() { <-s.sem }()

	blob, err := Compress(bytes.NewReader(f.Data), s.opts.Compress)
	if err != nil {
		s.send(failedMsg{id: id, err: err})
		return
	}

	remote, err := s.uploader.Upload(s.ctx, blob, f.Name, func(p models.UploadProgress) {
		s.send(progressMsg{id: id, progress: p})
	})
	if err != nil {
		s.send(failedMsg{id: id, err: err})
		return
	}
	s.send(uploadedMsg{id: id, url: remote})
}

// Remove drops an item and releases its preview if it still has one.
func (s *Session) Remove(id string) error {
	s.touch()
	reply := make(chan error, 1)
	if !s.send(removeMsg{id: id, reply: reply}) {
		return ErrSessionClosed
	}
	return <-reply
}

// Items returns a copy of the current list.
func (s *Session) Items() []models.ImageItem {
	snap, _ := s.snapshot()
	return snap.items
}

// Images returns the published remote URLs in acceptance order.
func (s *Session) Images() []string {
	snap, _ := s.snapshot()
	return snap.published
}

func (s *Session) snapshot() (snapshot, bool) {
	reply := make(chan snapshot, 1)
	if !s.send(snapshotMsg{reply: reply}) {
		return snapshot{}, false
	}
	return <-reply, true
}

// Failures lists the items dropped so far, oldest first.
func (s *Session) Failures() []ItemFailure {
	snap, _ := s.snapshot()
	return snap.failures
}

func (s *Session) View() View {
	snap, _ := s.snapshot()
	v := View{
		ID:       s.id,
		Items:    snap.items,
		Images:   snap.published,
		Failures: snap.failures,
		Pending:  snap.pending,
	}
	if v.Items == nil {
		v.Items = []models.ImageItem{}
	}
	if v.Images == nil {
		v.Images = []string{}
	}
	if v.Failures == nil {
		v.Failures = []ItemFailure{}
	}
	return v
}

// Take hands out the published images for saving and seals the session, so
// no file can be added or removed between this check and the save. It fails
// with ErrUploadsPending while an upload is running. Call Unseal when the
// save did not happen; a saved session is discarded instead.
func (s *Session) Take() ([]string, error) {
	s.touch()
	reply := make(chan takeResult, 1)
	if !s.send(takeMsg{reply: reply}) {
		return nil, ErrSessionClosed
	}
	res := <-reply
	return res.images, res.err
}

func (s *Session) Unseal() {
	done := make(chan struct{})
	if s.send(unsealMsg{done: done}) {
		<-done
	}
}

// Wait blocks until every accepted file reached a final state.
func (s *Session) Wait() {
	s.wg.Wait()
	// Completions were sent before Done, so this round trip orders after them.
	s.snapshot()
}

// Pending reports whether an upload is still running.
func (s *Session) Pending() bool {
	snap, _ := s.snapshot()
	return snap.pending
}

// Close releases the previews of unfinished items and stops the session.
// Uploads still in flight are abandoned.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		done := make(chan struct{})
		if s.send(closeMsg{done: done}) {
			<-done
		}
		s.cancel()
	})
}

func (s *Session) send(msg any) bool {
	select {
	case s.inbox <- msg:
		return true
	case <-s.quit:
		return false
	}
}

func (s *Session) run() {
	for msg := range s.inbox {
		switch m := msg.(type) {
		case acceptMsg:
			if s.sealed {
				m.reply <- acceptResult{err: ErrSessionSealed}
				continue
			}
			items := make([]models.ImageItem, 0, len(m.entries))
			for _, e := range m.entries {
				s.entries = append(s.entries, e)
				items = append(items, e.item)
			}
			m.reply <- acceptResult{items: items}

		case progressMsg:
			if e := s.find(m.id); e != nil && e.state == StateUploading && m.progress.Percent > e.item.Progress {
				e.item.Progress = min(m.progress.Percent, 100)
			}

		case uploadedMsg:
			e := s.find(m.id)
			if e == nil {
				slog.Debug("Upload finished for removed item", "session", s.id, "item", m.id)
				continue
			}
			local := e.item.URL
			e.item.URL = m.url
			e.item.IsLocal = false
			e.item.Uploading = false
			e.item.Progress = 100
			e.state = StateUploaded
			s.release(local)
			s.publish()

		case failedMsg:
			e := s.find(m.id)
			if e == nil {
				continue
			}
			e.state = StateFailed
			s.drop(m.id)
			s.release(e.item.URL)
			s.failures = append(s.failures, ItemFailure{ItemID: m.id, Error: m.err.Error()})
			slog.Warn("Image upload failed", "session", s.id, "item", m.id, "error", m.err)
			if s.opts.OnFailure != nil {
				s.opts.OnFailure(m.id, m.err)
			}

		case removeMsg:
			if s.sealed {
				m.reply <- ErrSessionSealed
				continue
			}
			e := s.find(m.id)
			if e == nil {
				m.reply <- ErrItemNotFound
				continue
			}
			s.drop(m.id)
			s.release(e.item.URL)
			if !e.item.IsLocal {
				s.publish()
			}
			m.reply <- nil

		case snapshotMsg:
			items := make([]models.ImageItem, len(s.entries))
			for i, e := range s.entries {
				items[i] = e.item
			}
			m.reply <- snapshot{
				items:     items,
				published: append([]string(nil), s.published...),
				failures:  append([]ItemFailure(nil), s.failures...),
				pending:   s.uploading(),
			}

		case takeMsg:
			switch {
			case s.sealed:
				m.reply <- takeResult{err: ErrSessionSealed}
			case s.uploading():
				m.reply <- takeResult{err: ErrUploadsPending}
			default:
				s.sealed = true
				m.reply <- takeResult{images: append([]string{}, s.published...)}
			}

		case unsealMsg:
			s.sealed = false
			close(m.done)

		case closeMsg:
			for _, e := range s.entries {
				if e.item.IsLocal {
					s.release(e.item.URL)
				}
			}
			s.entries = nil
			close(s.quit)
			close(m.done)
			return
		}
	}
}

func (s *Session) uploading() bool {
	for _, e := range s.entries {
		if e.state == StateUploading {
			return true
		}
	}
	return false
}

func (s *Session) find(id string) *entry {
	for _, e := range s.entries {
		if e.item.ID == id {
			return e
		}
	}
	return nil
}

// drop removes the item while keeping the order of the others.
func (s *Session) drop(id string) {
	out := s.entries[:0]
	for _, e := range s.entries {
		if e.item.ID != id {
			out = append(out, e)
		}
	}
	s.entries = out
}

func (s *Session) remoteURLs() []string {
	urls := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		if !e.item.IsLocal {
			urls = append(urls, e.item.URL)
		}
	}
	return urls
}

func (s *Session) publish() {
	s.published = s.remoteURLs()
	if s.opts.OnPublish != nil {
		s.opts.OnPublish(append([]string(nil), s.published...))
	}
}

// releaseEntries undoes the previews of entries the actor never took over.
func (s *Session) releaseEntries(entries []*entry) {
	for _, e := range entries {
		s.release(e.item.URL)
	}
}

func (s *Session) release(url string) {
	if !IsLocal(url) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.previews.Release(ctx, url); err != nil {
		slog.Error("Failed to release preview", "session", s.id, "url", url, "error", err)
	}
}
