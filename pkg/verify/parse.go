package verify

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// traditionalLineRe matches "<hex>  [*]<filename>" lines (spec.md §4.5).
var traditionalLineRe = regexp.MustCompile(`^([a-fA-F0-9]+)\s+\*?(.+)$`)

// bsdLineRe matches "<ALGO> (<filename>) = <hex>" lines.
var bsdLineRe = regexp.MustCompile(`^([A-Za-z0-9]+)\s*\(([^)]+)\)\s*=\s*([a-fA-F0-9]+)$`)

// digestForFilename holds a parsed entry from any checksum-file format.
type digestForFilename struct {
	Hex       string
	Algorithm string
}

// algorithmFromFilename applies the filename heuristic (spec.md §4.5):
// used only when the checksum file does not declare an algorithm.
func algorithmFromFilename(name string) string {
	upper := strings.ToUpper(name)
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(upper, "SHA512"), strings.HasSuffix(lower, ".sha512"), strings.Contains(lower, ".sha512"):
		return "sha512"
	case strings.Contains(upper, "SHA256"), strings.HasSuffix(lower, ".sha256"), strings.Contains(lower, ".sha256"):
		return "sha256"
	case strings.Contains(lower, ".sha1"):
		return "sha1"
	case strings.Contains(lower, ".md5"):
		return "md5"
	case strings.HasSuffix(lower, ".yml"), strings.HasSuffix(lower, ".yaml"):
		return "sha256"
	default:
		return ""
	}
}

// ParseChecksumFile locates the digest for targetFilename within a checksum
// manifest's content, dispatching to the traditional/BSD/YAML parser based
// on content shape (spec.md §4.5).
func ParseChecksumFile(content, checksumFilename, targetFilename string) (digestForFilename, error) {
	trimmed := strings.TrimSpace(content)
	if looksLikeYAML(trimmed) {
		d, err := parseYAMLChecksums(trimmed, targetFilename)
		if err == nil {
			return d, nil
		}
		// fall through to line-oriented parsing as a defensive fallback
	}

	fallbackAlgo := algorithmFromFilename(checksumFilename)

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if m := bsdLineRe.FindStringSubmatch(line); m != nil {
			algo, filename, hexDigest := strings.ToLower(m[1]), m[2], m[3]
			if filename == targetFilename || strings.HasSuffix(filename, "/"+targetFilename) {
				return digestForFilename{Hex: strings.ToLower(hexDigest), Algorithm: algo}, nil
			}
			continue
		}
		if m := traditionalLineRe.FindStringSubmatch(line); m != nil {
			hexDigest, filename := m[1], m[2]
			filename = strings.TrimSpace(filename)
			if filename == targetFilename || strings.HasSuffix(filename, "/"+targetFilename) {
				algo := fallbackAlgo
				if algo == "" {
					algo = algorithmByHexLength(hexDigest)
				}
				return digestForFilename{Hex: strings.ToLower(hexDigest), Algorithm: algo}, nil
			}
		}
	}

	return digestForFilename{}, fmt.Errorf("no digest found for %q in checksum file %q", targetFilename, checksumFilename)
}

func algorithmByHexLength(hexDigest string) string {
	switch len(hexDigest) {
	case 32:
		return "md5"
	case 40:
		return "sha1"
	case 64:
		return "sha256"
	case 128:
		return "sha512"
	default:
		return "sha256"
	}
}

func looksLikeYAML(content string) bool {
	return strings.Contains(content, "path:") || strings.Contains(content, "files:") || strings.Contains(content, "sha512:") || strings.Contains(content, "sha256:")
}

// yamlSingleFile is the single-file manifest shape: `path: name` plus a
// `sha256:`/`sha512:` base64 digest key.
type yamlSingleFile struct {
	Path   string `yaml:"path"`
	SHA512 string `yaml:"sha512"`
	SHA256 string `yaml:"sha256"`
}

// yamlFilesManifest is the multi-entry `files:` array shape.
type yamlFilesManifest struct {
	Files []struct {
		URL    string `yaml:"url"`
		SHA512 string `yaml:"sha512"`
		SHA256 string `yaml:"sha256"`
	} `yaml:"files"`
}

func parseYAMLChecksums(content, targetFilename string) (digestForFilename, error) {
	var files yamlFilesManifest
	if err := yaml.Unmarshal([]byte(content), &files); err == nil && len(files.Files) > 0 {
		for _, f := range files.Files {
			if f.URL == targetFilename || strings.HasSuffix(f.URL, "/"+targetFilename) {
				return digestFromBase64Pair(f.SHA512, f.SHA256)
			}
		}
		return digestForFilename{}, fmt.Errorf("target filename %q not present in files: manifest", targetFilename)
	}

	var single yamlSingleFile
	if err := yaml.Unmarshal([]byte(content), &single); err != nil {
		return digestForFilename{}, fmt.Errorf("parse YAML checksum manifest: %w", err)
	}
	if single.Path != "" && single.Path != targetFilename && !strings.HasSuffix(single.Path, "/"+targetFilename) {
		return digestForFilename{}, fmt.Errorf("target filename %q does not match manifest path %q", targetFilename, single.Path)
	}
	return digestFromBase64Pair(single.SHA512, single.SHA256)
}

// digestFromBase64Pair prefers sha512 when both are present (spec.md §4.5).
func digestFromBase64Pair(sha512B64, sha256B64 string) (digestForFilename, error) {
	if sha512B64 != "" {
		h, err := base64ToHex(sha512B64)
		if err != nil {
			return digestForFilename{}, fmt.Errorf("malformed base64 sha512 digest: %w", err)
		}
		return digestForFilename{Hex: h, Algorithm: "sha512"}, nil
	}
	if sha256B64 != "" {
		h, err := base64ToHex(sha256B64)
		if err != nil {
			return digestForFilename{}, fmt.Errorf("malformed base64 sha256 digest: %w", err)
		}
		return digestForFilename{Hex: h, Algorithm: "sha256"}, nil
	}
	return digestForFilename{}, fmt.Errorf("no sha256 or sha512 digest present")
}

func base64ToHex(b64 string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}
