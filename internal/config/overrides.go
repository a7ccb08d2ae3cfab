package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// Overrides are the settings an admin can change at runtime. They are kept in a
// small YAML file next to the binary and layered over the environment.
type Overrides struct {
	CloudName string       `yaml:"cloud_name,omitempty"`
	Store     *StoreConfig `yaml:"store,omitempty"`
}

func ReadOverrides(path string) (Overrides, error) {
	var ov Overrides
	if path == "" {
		return ov, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return ov, nil
	}
	if err != nil {
		return ov, fmt.Errorf("read overrides %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &ov); err != nil {
		return ov, fmt.Errorf("parse overrides %s: %w", path, err)
	}
	return ov, nil
}

func WriteOverrides(path string, ov Overrides) error {
	data, err := yaml.Marshal(ov)
	if err != nil {
		return fmt.Errorf("marshal overrides: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write overrides %s: %w", path, err)
	}
	return nil
}

func (ov Overrides) Apply(cfg *Config) {
	if ov.CloudName != "" {
		cfg.Media.CloudName = ov.CloudName
	}
	if ov.Store != nil && ov.Store.Driver != "" {
		cfg.Store = *ov.Store
	}
}

// Manager hands out the live configuration. Components keep the *Manager and call
// Current on every use, so a Reload is picked up without restarting them. The store
// connection is the exception: it is opened once, so a changed store needs a restart.
type Manager struct {
	current atomic.Pointer[Config]
	boot    StoreConfig
	load    func() (*Config, error)
	mu      sync.Mutex
}

func NewManager(cfg *Config) *Manager {
	return NewManagerWithLoader(cfg, LoadConfig)
}

// NewManagerWithLoader is NewManager with a custom source for Reload.
func NewManagerWithLoader(cfg *Config, load func() (*Config, error)) *Manager {
	m := &Manager{boot: cfg.Store, load: load}
	m.current.Store(cfg)
	return m
}

func (m *Manager) Current() *Config {
	return m.current.Load()
}

// Reload re-reads the environment and the overrides file. It reports whether the
// store settings now differ from the ones the process was started with.
func (m *Manager) Reload() (restartRequired bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reloadLocked()
}

func (m *Manager) reloadLocked() (bool, error) {
	prev := m.current.Load()
	next, err := m.load()
	if err != nil {
		return false, err
	}
	// Keys are generated when unset; regenerating them would log everybody out.
	next.CSRFKey = prev.CSRFKey
	next.SessionKey = prev.SessionKey
	m.current.Store(next)

	restart := next.Store != m.boot
	slog.Info("Configuration reloaded", "cloud_name", next.Media.CloudName, "restart_required", restart)
	return restart, nil
}

// SetCloudName persists a media account override and reloads.
func (m *Manager) SetCloudName(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	path := m.current.Load().OverridesPath
	ov, err := ReadOverrides(path)
	if err != nil {
		return err
	}
	ov.CloudName = name
	if err := WriteOverrides(path, ov); err != nil {
		return err
	}
	_, err = m.reloadLocked()
	return err
}

// SetStoreOverride persists a document store override. Passing nil removes it.
func (m *Manager) SetStoreOverride(sc *StoreConfig) (restartRequired bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path := m.current.Load().OverridesPath
	ov, err := ReadOverrides(path)
	if err != nil {
		return false, err
	}
	ov.Store = sc
	if err := WriteOverrides(path, ov); err != nil {
		return false, err
	}
	return m.reloadLocked()
}
