package types

import "time"

// Channel selects which release a forge client should return.
type Channel string

const (
	ChannelStable     Channel = "stable"
	ChannelPrerelease Channel = "prerelease"
	ChannelLatest     Channel = "latest"
)

// Release is one published version of a repository.
//
// Produced by the forge client and filtered by the asset selector before
// the release cache ever writes it to disk — only platform-relevant
// assets are persisted (spec.md §4.2).
type Release struct {
	Owner string `json:"owner"`
	Repo  string `json:"repo"`

	// Version is the normalized version string: leading "v" stripped,
	// prerelease tags canonicalized (e.g. "-beta.3" -> "b3").
	Version    string `json:"version"`
	Prerelease bool   `json:"prerelease"`
	// Tag is the original, unmodified tag string, preserved so the asset
	// selector and orchestrator can reconstruct forge URLs.
	Tag string `json:"tag"`

	PublishedAt time.Time `json:"published_at"`

	Assets []Asset `json:"assets"`

	// ChecksumFiles are parsed checksum manifests populated lazily during
	// verification (spec.md §4.5) and persisted alongside the release in
	// the cache so later verifications can skip the download.
	ChecksumFiles []ChecksumFile `json:"checksum_files,omitempty"`
}

// ChecksumFile is a parsed checksum manifest downloaded during verification.
type ChecksumFile struct {
	SourceURL string `json:"source_url"`
	Filename  string `json:"filename"`
	Algorithm string `json:"algorithm"`
	// Digests maps filename -> hex digest.
	Digests map[string]string `json:"digests"`
}
