// Package runtime models an active, composed filesystem environment: a
// named on-disk record of the object stack it was built from, plus the
// directories an overlay mount needs (spec.md §4.7). Grounded on
// _examples/original_source/crates/spfs/src/runtime/_storage_test.rs (the
// Runtime/Storage shape) and status.rs/bootstrap.rs (how a runtime is
// resolved, rendered, and entered).
package runtime

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spkenv/spfs/encoding"
	"github.com/spkenv/spfs/internal/uuid"
)

const (
	configFileName = "config.json"
	upperDirName   = "upper"
	workDirName    = "work"
	shStartupName  = "startup.sh"
	cshStartupName = "startup.csh"
	cshExpectName  = "startup.exp"
)

// Config is the persisted, mutable part of a runtime: the layer/platform
// digest stack it resolves to and whether its upper directory may still be
// written to.
type Config struct {
	Stack    []encoding.Digest `json:"stack"`
	Editable bool              `json:"editable"`
}

// Status additionally tracks process ownership, for the monitor to decide
// when a runtime is safe to clean up (spec.md §4.7).
type Status struct {
	PID     int       `json:"pid"`
	Running bool      `json:"running"`
	Created time.Time `json:"created"`
}

// Runtime is one named, on-disk composed environment: its own upper/work
// directories for the editable overlay layer, a config recording which
// objects it was built from, and a status block the monitor updates.
type Runtime struct {
	Name   string
	root   string
	Config Config
	Status Status
}

// Root returns the runtime's on-disk root directory.
func (r *Runtime) Root() string { return r.root }

// UpperDir is the writable overlay layer directory.
func (r *Runtime) UpperDir() string { return filepath.Join(r.root, upperDirName) }

// WorkDir is overlayfs's required scratch directory, sibling to UpperDir.
func (r *Runtime) WorkDir() string { return filepath.Join(r.root, workDirName) }

// ConfigFile is the path to this runtime's persisted Config.
func (r *Runtime) ConfigFile() string { return filepath.Join(r.root, configFileName) }

// ShStartupFile/CshStartupFile/CshExpectFile are the shell-init scripts
// written into a runtime's root by the entering process so interactive
// shells inherit the runtime's environment (spec.md §4.7; not itself a CLI
// concern, but the path convention is part of the on-disk layout).
func (r *Runtime) ShStartupFile() string  { return filepath.Join(r.root, shStartupName) }
func (r *Runtime) CshStartupFile() string { return filepath.Join(r.root, cshStartupName) }
func (r *Runtime) CshExpectFile() string  { return filepath.Join(r.root, cshExpectName) }

// IsEditable reports whether the runtime's upper directory currently
// accepts writes.
func (r *Runtime) IsEditable() bool { return r.Config.Editable }

// SetEditable flips editability and persists the change.
func (r *Runtime) SetEditable(editable bool) error {
	r.Config.Editable = editable
	return r.Save()
}

// Save writes the runtime's current Config to its config file.
func (r *Runtime) Save() error {
	data, err := json.MarshalIndent(r.Config, "", "  ")
	if err != nil {
		return err
	}
	tmp := r.ConfigFile() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, r.ConfigFile())
}

func loadRuntime(root, name string) (*Runtime, error) {
	rt := &Runtime{Name: name, root: root}
	data, err := os.ReadFile(rt.ConfigFile())
	if err != nil {
		return nil, fmt.Errorf("read runtime config: %w", err)
	}
	if err := json.Unmarshal(data, &rt.Config); err != nil {
		return nil, fmt.Errorf("decode runtime config: %w", err)
	}
	return rt, nil
}

// NoRuntimeError is returned when no runtime is currently active in the
// calling process's environment (spec.md §4.7).
type NoRuntimeError struct{ Details string }

func (e NoRuntimeError) Error() string {
	if e.Details == "" {
		return "no active runtime"
	}
	return fmt.Sprintf("no active runtime: %s", e.Details)
}

// UnknownRuntimeError is returned when a named runtime does not exist in a
// Storage.
type UnknownRuntimeError struct{ Name string }

func (e UnknownRuntimeError) Error() string {
	return fmt.Sprintf("unknown runtime: %s", e.Name)
}

// Storage manages the set of runtimes kept under one root directory
// (spec.md §4.7, one subdirectory per runtime named by a generated id).
type Storage struct {
	root string
}

// NewStorage opens (creating if necessary) a runtime storage root.
func NewStorage(root string) (*Storage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create runtime storage: %w", err)
	}
	return &Storage{root: root}, nil
}

// CreateRuntime allocates a new, empty runtime with a generated name.
func (s *Storage) CreateRuntime() (*Runtime, error) {
	name := uuid.NewString()
	root := filepath.Join(s.root, name)
	if err := os.MkdirAll(filepath.Join(root, upperDirName), 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(root, workDirName), 0o755); err != nil {
		return nil, err
	}
	rt := &Runtime{Name: name, root: root, Status: Status{PID: os.Getpid(), Created: time.Now()}}
	if err := rt.Save(); err != nil {
		return nil, err
	}
	return rt, nil
}

// ReadRuntime loads an existing runtime by name.
func (s *Storage) ReadRuntime(name string) (*Runtime, error) {
	root := filepath.Join(s.root, name)
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return nil, UnknownRuntimeError{Name: name}
		}
		return nil, err
	}
	return loadRuntime(root, name)
}

// RemoveRuntime deletes a runtime's entire on-disk directory.
func (s *Storage) RemoveRuntime(name string) error {
	root := filepath.Join(s.root, name)
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return UnknownRuntimeError{Name: name}
		}
		return err
	}
	return os.RemoveAll(root)
}

// ListRuntimes returns the names of every runtime currently stored, sorted.
func (s *Storage) ListRuntimes() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

const activeRuntimeEnvVar = "SPFS_RUNTIME"

// ActiveRuntime resolves the calling process's active runtime from its
// environment, or returns NoRuntimeError.
func ActiveRuntime(storage *Storage) (*Runtime, error) {
	name := os.Getenv(activeRuntimeEnvVar)
	if name == "" {
		return nil, NoRuntimeError{}
	}
	rt, err := storage.ReadRuntime(name)
	if err != nil {
		if _, ok := err.(UnknownRuntimeError); ok {
			return nil, NoRuntimeError{Details: err.Error()}
		}
		return nil, err
	}
	return rt, nil
}
