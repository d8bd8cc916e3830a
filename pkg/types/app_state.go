package types

import "time"

// StateSchemaVersion is bumped whenever the AppState shape changes in a
// way old readers cannot tolerate. Unknown fields are rejected on read to
// fail fast on schema drift (spec.md §4.9).
const StateSchemaVersion = 1

// MethodResult is the outcome of one verification method.
type MethodResult struct {
	Passed    bool   `json:"passed"`
	Hash      string `json:"hash,omitempty"`
	Algorithm string `json:"algorithm,omitempty"`
	Details   string `json:"details,omitempty"`
}

// VerificationResult is the outcome of the concurrent verifier (spec.md §4.5).
type VerificationResult struct {
	Passed  bool                    `json:"passed"`
	Methods map[string]MethodResult `json:"methods"`
	Warning string                  `json:"warning,omitempty"`
	// UpdatedConfig reflects which method succeeded, written back so
	// later runs know what worked.
	UpdatedConfig AppConfig `json:"-"`
}

// IconRecord is the icon-installation outcome stored in AppState.
type IconRecord struct {
	Installed bool       `json:"installed"`
	Path      string      `json:"path,omitempty"`
	Method    IconMethod  `json:"method,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// AppState is the persisted record of an installed application (spec.md §3).
//
// Invariant: for Source=catalog, CatalogRef is non-nil and Overrides is
// nil; for Source=url, CatalogRef is nil and Overrides is non-nil.
type AppState struct {
	SchemaVersion int        `json:"schema_version"`
	Name          string     `json:"name"`
	Source        SourceKind `json:"source"`

	CatalogRef *CatalogRef `json:"catalog_ref,omitempty"`
	Overrides  *AppConfig  `json:"overrides,omitempty"`

	InstalledVersion string    `json:"installed_version"`
	InstalledAt      time.Time `json:"installed_at"`
	InstallPath      string    `json:"install_path"`

	Verification VerificationSummary `json:"verification"`
	Icon         IconRecord          `json:"icon"`
}

// CatalogRef identifies which catalog entry an AppState came from.
type CatalogRef struct {
	Owner   string  `json:"owner"`
	Repo    string  `json:"repo"`
	Channel Channel `json:"channel"`
}

// VerificationSummary is the subset of VerificationResult persisted in
// AppState (methods keyed by name, no UpdatedConfig since that is folded
// back into Overrides/CatalogRef directly).
type VerificationSummary struct {
	Passed  bool                    `json:"passed"`
	Methods map[string]MethodResult `json:"methods"`
	Warning string                  `json:"warning,omitempty"`
}

// SummaryOf converts a VerificationResult into its persisted form.
func SummaryOf(r VerificationResult) VerificationSummary {
	return VerificationSummary{Passed: r.Passed, Methods: r.Methods, Warning: r.Warning}
}
