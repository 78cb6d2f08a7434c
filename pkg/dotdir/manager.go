// Package dotdir resolves the tether state directory and the files kept in
// it: config.toml and session.json, the chat session state that remembers
// the last conversation of every user.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DirName is the name of the state directory.
	DirName = ".tether"

	// SessionFile holds the chat session state.
	SessionFile = "session.json"
)

// Manager resolves the state directory.
type Manager struct {
	home    func() (string, error)
	workDir func() (string, error)
}

// Option configures a Manager.
type Option func(*Manager)

// WithHome replaces the home directory lookup.
func WithHome(dir string) Option {
	return func(m *Manager) {
		m.home = func() (string, error) { return dir, nil }
	}
}

// WithWorkDir replaces the working directory lookup.
func WithWorkDir(dir string) Option {
	return func(m *Manager) {
		m.workDir = func() (string, error) { return dir, nil }
	}
}

func NewManager(opts ...Option) *Manager {
	m := &Manager{
		home:    os.UserHomeDir,
		workDir: os.Getwd,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Target returns the absolute path of the state directory, creating it when
// missing. Order of precedence:
//  1. overrideDir
//  2. .tether/ in the working directory, when it exists
//  3. ~/.tether/
func (m *Manager) Target(overrideDir string) (string, error) {
	dir, err := m.resolve(overrideDir)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating tether directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

// Path returns the absolute path of name inside the state directory.
func (m *Manager) Path(name, overrideDir string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// SessionPath returns the absolute path of the chat session file.
func (m *Manager) SessionPath(overrideDir string) (string, error) {
	return m.Path(SessionFile, overrideDir)
}

func (m *Manager) resolve(overrideDir string) (string, error) {
	if overrideDir != "" {
		return overrideDir, nil
	}

	if wd, err := m.workDir(); err == nil {
		local := filepath.Join(wd, DirName)
		if info, err := os.Stat(local); err == nil && info.IsDir() {
			return local, nil
		}
	}

	home, err := m.home()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, DirName), nil
}
