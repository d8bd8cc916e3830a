// Package state is the per-app JSON state manager (spec.md §4.9): strictly
// validated records keyed by canonical app name, atomic write-then-rename,
// reads that tolerate absence.
//
// Grounded on the teacher's pkg/cache/cache.go write-then-rename pattern,
// reused here for AppState files instead of Release cache entries. Unknown
// JSON fields are rejected via json.Decoder.DisallowUnknownFields, which
// the cache package does not need (Release's shape is additive-only) but
// spec.md §4.9 explicitly requires for state files ("fail fast on schema
// drift").
package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/apperrors"
	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/types"
)

// Store manages AppState files under one directory, one file per app.
type Store struct {
	dir string
}

// New creates a Store rooted at dir, creating it if necessary.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

func sanitizeName(name string) string {
	return strings.NewReplacer("/", "_", " ", "_").Replace(strings.ToLower(name))
}

func (s *Store) pathFor(appName string) string {
	return filepath.Join(s.dir, sanitizeName(appName)+".json")
}

// Load reads the AppState for appName. Returns (nil, nil) if no state file
// exists. Unknown fields in the stored JSON are rejected.
func (s *Store) Load(appName string) (*types.AppState, error) {
	data, err := os.ReadFile(s.pathFor(appName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &apperrors.StateWriteError{App: appName, Err: err}
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var st types.AppState
	if err := dec.Decode(&st); err != nil {
		return nil, &apperrors.StateWriteError{App: appName, Err: fmt.Errorf("decode state: %w", err)}
	}
	return &st, nil
}

// Save writes the AppState for st.Name atomically (write-then-rename).
func (s *Store) Save(st types.AppState) error {
	if st.Name == "" {
		return &apperrors.StateWriteError{App: st.Name, Err: fmt.Errorf("state requires a non-empty app name")}
	}
	st.SchemaVersion = types.StateSchemaVersion

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return &apperrors.StateWriteError{App: st.Name, Err: err}
	}

	path := s.pathFor(st.Name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return &apperrors.StateWriteError{App: st.Name, Err: err}
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return &apperrors.StateWriteError{App: st.Name, Err: err}
	}
	return nil
}

// Delete removes the AppState for appName, if present.
func (s *Store) Delete(appName string) error {
	err := os.Remove(s.pathFor(appName))
	if err != nil && !os.IsNotExist(err) {
		return &apperrors.StateWriteError{App: appName, Err: err}
	}
	return nil
}

// List returns the canonical names of all installed apps, derived from the
// state files present on disk, sorted for deterministic iteration.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, de := range entries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, de.Name()))
		if err != nil {
			continue
		}
		var st types.AppState
		if err := json.Unmarshal(data, &st); err != nil || st.Name == "" {
			continue
		}
		names = append(names, st.Name)
	}
	sort.Strings(names)
	return names, nil
}

// Exists reports whether an app is currently installed (time-of-check; the
// caller should tolerate a subsequent Load returning nil).
func (s *Store) Exists(appName string) bool {
	_, err := os.Stat(s.pathFor(appName))
	return err == nil
}

// installedAt is a small helper so callers constructing a fresh AppState
// get a consistent timestamp source.
func installedAt() time.Time { return time.Now() }

// NewInstalledState builds the AppState recorded by the post-download
// processor's write-state step (spec.md §4.6 step 7).
func NewInstalledState(name string, source types.SourceKind, catalogRef *types.CatalogRef, overrides *types.AppConfig, version, installPath string, verification types.VerificationResult, icon types.IconRecord) types.AppState {
	return types.AppState{
		SchemaVersion:    types.StateSchemaVersion,
		Name:             name,
		Source:           source,
		CatalogRef:       catalogRef,
		Overrides:        overrides,
		InstalledVersion: version,
		InstalledAt:      installedAt(),
		InstallPath:      installPath,
		Verification:     types.SummaryOf(verification),
		Icon:             icon,
	}
}
