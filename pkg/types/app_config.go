package types

// SourceKind distinguishes catalog-backed apps from ad-hoc URL installs.
type SourceKind string

const (
	SourceCatalog SourceKind = "catalog"
	SourceURL     SourceKind = "url"
)

// VerifyMethod is the verification directive for an app.
type VerifyMethod string

const (
	VerifyDigest       VerifyMethod = "digest"
	VerifyChecksumFile VerifyMethod = "checksum_file"
	VerifySkip         VerifyMethod = "skip"
)

// IconMethod is the icon-acquisition directive for an app.
type IconMethod string

const (
	IconExtraction IconMethod = "extraction"
	IconDownload   IconMethod = "download"
	IconNone       IconMethod = "none"
)

// VerifyConfig holds the verification directives of an AppConfig.
type VerifyConfig struct {
	Method             VerifyMethod `json:"method" yaml:"method"`
	ChecksumFilename   string       `json:"checksum_filename,omitempty" yaml:"checksum_filename,omitempty"`
	ChecksumAlgorithm  string       `json:"checksum_algorithm,omitempty" yaml:"checksum_algorithm,omitempty"`
	// Skip is set true when no strong verification method is configured.
	// The verifier may override it back to false when a strong method
	// becomes available at runtime (spec.md §4.5 skip policy).
	Skip bool `json:"skip,omitempty" yaml:"skip,omitempty"`
}

// IconConfig holds the icon directives of an AppConfig.
type IconConfig struct {
	Method      IconMethod `json:"method" yaml:"method"`
	Filename    string     `json:"filename,omitempty" yaml:"filename,omitempty"`
	DownloadURL string     `json:"download_url,omitempty" yaml:"download_url,omitempty"`
}

// NamingConfig holds the appimage-naming directives of an AppConfig.
type NamingConfig struct {
	// RenameTo is the install-time target filename (without extension);
	// it may be an expression over name/version/tag such as
	// `name + "-" + version` (see pkg/installer/rename.go).
	RenameTo string `json:"rename_to,omitempty" yaml:"rename_to,omitempty"`
	// PreferredSuffixes ranks candidate assets by filename suffix, first
	// match wins (spec.md §4.3 step 2).
	PreferredSuffixes []string `json:"preferred_suffixes,omitempty" yaml:"preferred_suffixes,omitempty"`
	ArchTags          []string `json:"arch_tags,omitempty" yaml:"arch_tags,omitempty"`
}

// AppConfig describes one installable application: a catalog entry or a
// user-supplied URL record (spec.md §3).
type AppConfig struct {
	Name   string     `json:"name" yaml:"name"`
	Source SourceKind `json:"source" yaml:"source"`

	Owner   string  `json:"owner" yaml:"owner"`
	Repo    string  `json:"repo" yaml:"repo"`
	Channel Channel `json:"channel" yaml:"channel"`

	Naming   NamingConfig `json:"naming" yaml:"naming"`
	Verify   VerifyConfig `json:"verify" yaml:"verify"`
	Icon     IconConfig   `json:"icon" yaml:"icon"`

	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Categories  []string `json:"categories,omitempty" yaml:"categories,omitempty"`
}

// DefaultAppConfig builds the ad-hoc AppConfig used for a bare repository
// URL target (spec.md §4.8 install step 2, "otherwise parse as a
// repository URL and construct an ad-hoc AppConfig with source = url and
// defaults for naming/verification/icon").
func DefaultAppConfig(name, owner, repo string) AppConfig {
	return AppConfig{
		Name:    name,
		Source:  SourceURL,
		Owner:   owner,
		Repo:    repo,
		Channel: ChannelStable,
		Verify: VerifyConfig{
			Method: VerifyChecksumFile,
		},
		Icon: IconConfig{
			Method: IconExtraction,
		},
		Categories: []string{"Utility"},
	}
}
