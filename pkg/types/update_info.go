package types

// UpdateInfo is the per-app result of an update check (spec.md §3).
//
// Invariant: IsSuccess() == (ErrorReason == "").
type UpdateInfo struct {
	AppName        string  `json:"app_name"`
	CurrentVersion string  `json:"current_version"`
	LatestVersion  string  `json:"latest_version"`
	HasUpdate      bool    `json:"has_update"`
	ReleaseURL     string  `json:"release_url,omitempty"`
	Prerelease     bool    `json:"prerelease"`
	OriginalTag    string  `json:"original_tag,omitempty"`

	// CachedRelease/CachedConfig avoid refetching during Apply.
	CachedRelease *Release   `json:"-"`
	CachedConfig  *AppConfig `json:"-"`

	ErrorReason string `json:"error_reason,omitempty"`
}

// IsSuccess reports whether the update check completed without error.
func (u UpdateInfo) IsSuccess() bool {
	return u.ErrorReason == ""
}

// UnknownVersion is the literal sentinel used when the latest version
// cannot be determined. When LatestVersion == UnknownVersion, OriginalTag
// is never auto-generated (spec.md §3 UpdateInfo invariant).
const UnknownVersion = "unknown"
