package media

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alextreichler/luxestore/internal/config"
)

// Manager owns the upload sessions of the admin product forms.
type Manager struct {
	previews PreviewStore
	uploader Uploader
	cfg      *config.Manager
	idleTTL  time.Duration

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(previews PreviewStore, uploader Uploader, cfg *config.Manager, idleTTL time.Duration) *Manager {
	return &Manager{
		previews: previews,
		uploader: uploader,
		cfg:      cfg,
		idleTTL:  idleTTL,
		sessions: make(map[string]*Session),
	}
}

// CompressOptions derives the pipeline settings from the live configuration.
func (m *Manager) CompressOptions() CompressOptions {
	mc := m.cfg.Current().Media
	format, err := ParseFormat(mc.Format)
	if err != nil {
		slog.Warn("Falling back to webp", "format", mc.Format, "error", err)
		format = FormatWebP
	}
	return CompressOptions{
		MaxWidth:  mc.MaxWidth,
		MaxHeight: mc.MaxHeight,
		Quality:   mc.Quality,
		Format:    format,
	}
}

// Create starts a session, optionally seeded with the images a product already has.
func (m *Manager) Create(existing []string) *Session {
	var s *Session
	s = NewSession(m.previews, m.uploader, SessionOptions{
		Compress: m.CompressOptions(),
		Workers:  m.cfg.Current().Media.UploadWorkers,
		OnFailure: func(itemID string, err error) {
			slog.Warn("Image dropped from upload session", "session", s.ID(), "item", itemID, "error", err)
		},
	}, existing)

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()
	slog.Debug("Upload session created", "session", s.ID(), "existing", len(existing))
	return s
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if ok {
		s.touch()
	}
	return s, ok
}

// Discard closes a session once its images were saved or the form was abandoned.
func (m *Manager) Discard(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.Close()
	}
}

// Sweep closes sessions idle for longer than the TTL and returns how many it closed.
func (m *Manager) Sweep(now time.Time) int {
	m.mu.Lock()
	var stale []*Session
	for id, s := range m.sessions {
		if now.Sub(s.LastActive()) > m.idleTTL {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		s.Close()
	}
	if len(stale) > 0 {
		slog.Info("Closed idle upload sessions", "count", len(stale))
	}
	return len(stale)
}

// Run sweeps idle sessions until ctx is done, then closes the rest.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.closeAll()
			return
		case now := <-ticker.C:
			m.Sweep(now)
		}
	}
}

func (m *Manager) closeAll() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range all {
		s.Close()
	}
}
