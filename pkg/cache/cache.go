// Package cache is the on-disk TTL cache of filtered types.Release
// objects keyed by (owner, repo, channel), plus per-release checksum-file
// payloads (spec.md §4.2).
//
// Grounded on the teacher's pkg/runtime/cache.go (JSON marshal/unmarshal
// to a file under the user's home directory, mutex-guarded in-memory
// mirror) and pkg/cache/cache.go's write-then-rename atomicity pattern.
// Writes also take a best-effort gofrs/flock advisory lock per entry file
// (TryLock): when another writer holds it the write still proceeds, and
// concurrent writers to the same key settle by rename, last one wins
// (spec.md §5 "writes are atomic; concurrent writers to the same key
// serialize via rename").
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/apperrors"
	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/types"
)

// DefaultTTLHours is the default release-cache freshness window.
const DefaultTTLHours = 24

// entry is the on-disk shape of one cache file.
type entry struct {
	CachedAt time.Time     `json:"cached_at"`
	TTLHours int           `json:"ttl_hours"`
	Release  types.Release `json:"release_data"`
}

// checksumBlob is a stored ChecksumFile plus the release version it was
// captured against, so a version mismatch refuses the read (spec.md §4.2
// store_checksum_file contract).
type checksumBlob struct {
	Version string             `json:"version"`
	File    types.ChecksumFile `json:"file"`
}

// Cache is the release cache. It never contacts the network and is the
// only component that touches its own files.
type Cache struct {
	dir      string
	ttlHours int
}

// New creates a Cache rooted at dir, creating it if necessary.
func New(dir string, ttlHours int) (*Cache, error) {
	if ttlHours <= 0 {
		ttlHours = DefaultTTLHours
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	return &Cache{dir: dir, ttlHours: ttlHours}, nil
}

func (c *Cache) pathFor(owner, repo string, channel types.Channel) string {
	name := fmt.Sprintf("%s_%s", sanitize(owner), sanitize(repo))
	if channel != "" {
		name += "_" + sanitize(string(channel))
	}
	return filepath.Join(c.dir, name+".json")
}

// checksumPathFor is deliberately channel-independent: store_checksum_file
// (spec.md §4.2) takes no channel argument, so checksum manifests are
// shared across whichever channel cache entries exist for (owner, repo).
func (c *Cache) checksumPathFor(owner, repo string) string {
	return filepath.Join(c.dir, fmt.Sprintf("%s_%s_checksums.json", sanitize(owner), sanitize(repo)))
}

func sanitize(s string) string {
	return strings.NewReplacer("/", "_", " ", "_").Replace(s)
}

// checksumStoreSuffix is checksumPathFor's filename suffix. Cache-directory
// walks (CleanupExpired, Stats) must skip these: they hold a checksumEntry
// shape, not a release entry, and unmarshaling one into entry silently
// zero-values CachedAt rather than failing.
const checksumStoreSuffix = "_checksums.json"

func isChecksumStoreFile(name string) bool {
	return strings.HasSuffix(name, checksumStoreSuffix)
}

func (c *Cache) readEntry(path string) (*entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		// Malformed JSON on disk: silently delete and report "no entry".
		_ = os.Remove(path)
		return nil, nil
	}
	return &e, nil
}

func (c *Cache) writeEntry(path string, e *entry) error {
	lock := flock.New(path + ".lock")
	if ok, err := lock.TryLock(); err == nil && ok {
		defer lock.Unlock()
	}

	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Get returns the cached Release for (owner, repo, channel), or nil if
// absent, expired, or corrupted. ignoreTTL bypasses the freshness check
// (used by --refresh-cache's opposite: explicit stale-OK reads).
func (c *Cache) Get(owner, repo string, channel types.Channel, ignoreTTL bool) (*types.Release, error) {
	path := c.pathFor(owner, repo, channel)
	e, err := c.readEntry(path)
	if err != nil {
		return nil, &apperrors.CacheIOError{Op: "get", Err: err}
	}
	if e == nil {
		return nil, nil
	}
	if !ignoreTTL && c.isExpired(e) {
		return nil, nil
	}
	rel := e.Release
	return &rel, nil
}

func (c *Cache) isExpired(e *entry) bool {
	ttl := e.TTLHours
	if ttl <= 0 {
		ttl = c.ttlHours
	}
	return time.Now().After(e.CachedAt.Add(time.Duration(ttl) * time.Hour))
}

// Put writes a filtered Release to the cache atomically. Failures never
// propagate — they are reported via the returned error purely so the
// caller can log, but the caller must treat a non-nil error as
// "continue, next fetch will repopulate" per spec.md §4.2.
func (c *Cache) Put(owner, repo string, channel types.Channel, release types.Release) error {
	path := c.pathFor(owner, repo, channel)
	e := &entry{CachedAt: time.Now(), TTLHours: c.ttlHours, Release: release}
	if err := c.writeEntry(path, e); err != nil {
		return &apperrors.CacheIOError{Op: "put", Err: err}
	}
	return nil
}

// checksumEntry is the on-disk shape of the channel-independent checksum
// manifest store for one (owner, repo).
type checksumEntry struct {
	Files map[string]checksumBlob `json:"checksum_files"`
}

func (c *Cache) readChecksumEntry(path string) (*checksumEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var e checksumEntry
	if err := json.Unmarshal(data, &e); err != nil {
		_ = os.Remove(path)
		return nil, nil
	}
	return &e, nil
}

func (c *Cache) writeChecksumEntry(path string, e *checksumEntry) error {
	lock := flock.New(path + ".lock")
	if ok, err := lock.TryLock(); err == nil && ok {
		defer lock.Unlock()
	}
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// StoreChecksumFile extends the checksum manifest store with a parsed
// checksum file keyed by source URL. Refuses the write (returns false) if
// an existing entry for that URL is pinned to a different version.
func (c *Cache) StoreChecksumFile(owner, repo, version string, file types.ChecksumFile) (bool, error) {
	path := c.checksumPathFor(owner, repo)
	e, err := c.readChecksumEntry(path)
	if err != nil {
		return false, &apperrors.CacheIOError{Op: "store-checksum", Err: err}
	}
	if e == nil {
		e = &checksumEntry{Files: make(map[string]checksumBlob)}
	}
	if existing, ok := e.Files[file.SourceURL]; ok && existing.Version != version {
		return false, nil
	}
	e.Files[file.SourceURL] = checksumBlob{Version: version, File: file}
	if err := c.writeChecksumEntry(path, e); err != nil {
		return false, &apperrors.CacheIOError{Op: "store-checksum", Err: err}
	}
	return true, nil
}

// GetChecksumFile returns a previously stored checksum manifest, or nil if
// absent or stored against a different version.
func (c *Cache) GetChecksumFile(owner, repo, version, sourceURL string) (*types.ChecksumFile, error) {
	path := c.checksumPathFor(owner, repo)
	e, err := c.readChecksumEntry(path)
	if err != nil {
		return nil, &apperrors.CacheIOError{Op: "get-checksum", Err: err}
	}
	if e == nil {
		return nil, nil
	}
	blob, ok := e.Files[sourceURL]
	if !ok || blob.Version != version {
		return nil, nil
	}
	f := blob.File
	return &f, nil
}

// HasChecksumFile reports whether a checksum manifest is cached for the
// given source URL and version.
func (c *Cache) HasChecksumFile(owner, repo, version, sourceURL string) bool {
	f, _ := c.GetChecksumFile(owner, repo, version, sourceURL)
	return f != nil
}

// CleanupExpired walks the cache directory and removes entries older than
// maxAgeDays, or whose JSON cannot be parsed.
func (c *Cache) CleanupExpired(maxAgeDays int) (removed int, err error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return 0, err
	}
	threshold := time.Now().AddDate(0, 0, -maxAgeDays)
	for _, de := range entries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".json") || isChecksumStoreFile(de.Name()) {
			continue
		}
		path := filepath.Join(c.dir, de.Name())
		e, readErr := c.readEntry(path)
		if readErr != nil || e == nil {
			if readErr != nil {
				_ = os.Remove(path)
				removed++
			}
			continue
		}
		if e.CachedAt.Before(threshold) {
			if err := os.Remove(path); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// Stats summarizes the cache directory's contents.
type Stats struct {
	Total     int    `json:"total"`
	Fresh     int    `json:"fresh"`
	Expired   int    `json:"expired"`
	Corrupted int    `json:"corrupted"`
	TTLHours  int    `json:"ttl_hours"`
	Directory string `json:"cache_directory"`
}

// Stats computes aggregate cache statistics.
func (c *Cache) Stats() (Stats, error) {
	s := Stats{TTLHours: c.ttlHours, Directory: c.dir}
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return s, err
	}
	for _, de := range entries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), ".json") || isChecksumStoreFile(de.Name()) {
			continue
		}
		s.Total++
		path := filepath.Join(c.dir, de.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			s.Corrupted++
			continue
		}
		var e entry
		if err := json.Unmarshal(data, &e); err != nil {
			s.Corrupted++
			continue
		}
		if c.isExpired(&e) {
			s.Expired++
		} else {
			s.Fresh++
		}
	}
	return s, nil
}
