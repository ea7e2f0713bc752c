// Package config stores voicebridge settings as named contexts. Each
// context is a directory holding one bridge.yaml, so separate dev/staging/
// prod endpoints live side by side and switch with a single command.
//
// On disk, under os.UserConfigDir():
//
//	voicebridge/
//	├── active-context      # plain text: name of the active context
//	└── contexts/
//	    ├── dev/bridge.yaml
//	    └── prod/bridge.yaml
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	storeDir       = "voicebridge"
	activeFile     = "active-context"
	contextsSubdir = "contexts"
)

// Store is the on-disk settings root.
type Store struct {
	// Root is the settings directory.
	Root string

	// Active is the active context name, empty when none is set.
	Active string
}

// Open opens the store at the default location for this OS.
func Open() (*Store, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("locate settings directory: %w", err)
	}
	return OpenAt(filepath.Join(base, storeDir)), nil
}

// OpenAt opens the store rooted at dir. A missing directory is an empty
// store, not an error; it is created on first write.
func OpenAt(dir string) *Store {
	s := &Store{Root: dir}
	if data, err := os.ReadFile(filepath.Join(dir, activeFile)); err == nil {
		s.Active = strings.TrimSpace(string(data))
	}
	return s
}

// ContextDir returns the directory for a named context.
func (s *Store) ContextDir(name string) string {
	return filepath.Join(s.Root, contextsSubdir, name)
}

// Resolve returns the directory for name, or for the active context when
// name is empty.
func (s *Store) Resolve(name string) (string, error) {
	if name == "" {
		if s.Active == "" {
			return "", fmt.Errorf("no active context; run 'voicebridge config use-context <name>'")
		}
		name = s.Active
	}
	dir := s.ContextDir(name)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return "", fmt.Errorf("context %q not found", name)
	}
	return dir, nil
}

// ContextInfo summarizes one context for listings.
type ContextInfo struct {
	Name   string
	Active bool

	// Transport is the configured peer transport, empty while bridge.yaml
	// is missing or unreadable.
	Transport string
}

// Contexts lists all contexts with their configured transport.
func (s *Store) Contexts() ([]ContextInfo, error) {
	entries, err := os.ReadDir(filepath.Join(s.Root, contextsSubdir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list contexts: %w", err)
	}

	var infos []ContextInfo
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info := ContextInfo{Name: e.Name(), Active: e.Name() == s.Active}
		if b, err := LoadBridge(s.ContextDir(e.Name())); err == nil {
			info.Transport = b.Transport
			if info.Transport == "" {
				info.Transport = "webrtc"
			}
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// Create makes a new context seeded with a starter bridge.yaml (webrtc
// transport, endpoints left for the user to fill in) and returns its
// directory.
func (s *Store) Create(name string) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	dir := s.ContextDir(name)
	if _, err := os.Stat(dir); err == nil {
		return "", fmt.Errorf("context %q already exists", name)
	}
	if err := SaveBridge(dir, &Bridge{Transport: "webrtc"}); err != nil {
		return "", fmt.Errorf("create context %q: %w", name, err)
	}
	return dir, nil
}

// Remove deletes a context and its bridge settings. Removing the active
// context clears the active pointer.
func (s *Store) Remove(name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	dir := s.ContextDir(name)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return fmt.Errorf("context %q not found", name)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove context %q: %w", name, err)
	}
	if s.Active == name {
		s.Active = ""
		return s.writeActive()
	}
	return nil
}

// SetActive switches the active context.
func (s *Store) SetActive(name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	if _, err := os.Stat(s.ContextDir(name)); os.IsNotExist(err) {
		return fmt.Errorf("context %q not found", name)
	}
	s.Active = name
	return s.writeActive()
}

func (s *Store) writeActive() error {
	if err := os.MkdirAll(s.Root, 0755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	return os.WriteFile(filepath.Join(s.Root, activeFile), []byte(s.Active+"\n"), 0644)
}

// checkName rejects context names that would escape the contexts
// directory or hide the context from listings.
func checkName(name string) error {
	if name == "" {
		return fmt.Errorf("context name cannot be empty")
	}
	if strings.ContainsAny(name, "/\\") {
		return fmt.Errorf("context name %q must not contain path separators", name)
	}
	if strings.HasPrefix(name, ".") {
		return fmt.Errorf("context name %q must not start with '.'", name)
	}
	return nil
}
