// Package selector is a pure filter+rank over a Release's assets: platform
// compatibility, preferred suffixes, checksum-file relevance (spec.md
// §4.3). It performs no I/O and never contacts a forge or the cache.
//
// Grounded on the teacher's pkg/manager/asset_filter.go (OS/arch alias
// filtering) and pkg/manager/platform_filter.go (pattern matching via
// doublestar-style globs), generalized here to AppImage-specific
// rejection markers instead of generic OS/arch token lists, since
// spec.md §1 Non-goals pin the stock selector to Linux x86_64 only.
package selector

import (
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/samber/lo"

	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/types"
)

// rejectedGlobs are filename glob patterns that disqualify an asset from
// platform compatibility (spec.md §4.3).
var rejectedGlobs = []string{
	"*.exe", "*.msi", "*Win64*", "*win32*", "*Windows*",
	"*.dmg", "*.pkg",
	"*-src-*", "*-source-*", "*.src.tar.*",
}

// rejectedTokenRe matches standalone (word-boundary) macOS/ARM/experimental
// tokens that a plain glob can't express precisely (e.g. "macro" must not
// match "mac").
var rejectedTokenRe = regexp.MustCompile(`(?i)\b(mac|darwin|osx|apple|arm64|aarch64|armhf|armv7l|armv6|nightly|experimental|unstable)\b`)

// acceptedArchTokenRe matches the acceptable architecture tokens (x86_64,
// amd64). IsPlatformCompatible never matches against it: these tokens pass
// because rejectedTokenRe does not list them ("arm" alone, without a
// qualifying digit, is not listed either and so is not rejected).
var acceptedArchTokenRe = regexp.MustCompile(`(?i)\b(x86_64|amd64)\b`)

// IsPlatformCompatible reports whether filename is an acceptable Linux
// x86_64 AppImage asset (spec.md §4.3 "Rules for platform compatibility").
func IsPlatformCompatible(filename string) bool {
	if !strings.HasSuffix(filename, ".AppImage") {
		return false
	}
	for _, g := range rejectedGlobs {
		if ok, _ := doublestar.Match(g, filename); ok {
			return false
		}
	}
	if rejectedTokenRe.MatchString(filename) {
		return false
	}
	_ = acceptedArchTokenRe // documents intent; no special-casing needed today
	return true
}

// checksumExtensions are filename suffixes recognized as a checksum file
// (spec.md §4.3 "Rules for relevant-checksum").
var checksumExtensions = []string{
	".sha256", ".sha256sum", ".sha512", ".sha512sum", ".md5sum", ".DIGEST",
}

var checksumPairedNames = map[string]bool{
	"SHA256SUMS": true,
	"SHA512SUMS": true,
}

// yamlManifestGlobs matches YAML manifests commonly used by build tooling
// (e.g. electron-builder's latest-linux.yml).
var yamlManifestGlobs = []string{"latest-linux.yml", "latest-linux.yaml", "*-linux.yml"}

// IsChecksumFile reports whether filename looks like a checksum manifest.
func IsChecksumFile(filename string) bool {
	for _, ext := range checksumExtensions {
		if strings.HasSuffix(filename, ext) {
			return true
		}
	}
	if checksumPairedNames[filename] {
		return true
	}
	for _, g := range yamlManifestGlobs {
		if ok, _ := doublestar.Match(g, filename); ok {
			return true
		}
	}
	return false
}

// IsRelevantChecksumFile reports whether a checksum file is relevant to
// the set of platform-compatible AppImage assets in a release (spec.md
// §4.3 "A checksum file is relevant only if...").
func IsRelevantChecksumFile(checksumFilename string, appimageAssets []types.Asset) bool {
	if !IsChecksumFile(checksumFilename) {
		return false
	}
	if checksumPairedNames[checksumFilename] {
		return true // paired manifest, not tied to one filename
	}
	for _, g := range yamlManifestGlobs {
		if ok, _ := doublestar.Match(g, checksumFilename); ok {
			return true // YAML manifest for the Linux channel
		}
	}
	// Otherwise must correspond to a platform-compatible AppImage's base name.
	base := strings.TrimSuffix(checksumFilename, extensionOf(checksumFilename))
	for _, a := range appimageAssets {
		if strings.HasPrefix(base, strings.TrimSuffix(a.Name, ".AppImage")) {
			return true
		}
	}
	return false
}

func extensionOf(filename string) string {
	for _, ext := range checksumExtensions {
		if strings.HasSuffix(filename, ext) {
			return ext
		}
	}
	return ""
}

// unstableMarkerRe matches unstable-version tokens used for URL-install
// prerelease filtering (spec.md §4.3 step 3).
var unstableMarkerRe = regexp.MustCompile(`(?i)(alpha|beta|rc|nightly|dev)`)

// SelectAppImageForPlatform implements spec.md §4.3's
// select_appimage_for_platform operation: filter to platform-compatible
// AppImages, rank by preferred suffix, apply prerelease filtering for URL
// installs, and return the first remaining candidate (or nil).
//
// Ties are broken by asset list order, mirroring forge response order.
func SelectAppImageForPlatform(release types.Release, preferredSuffixes []string, installationSource types.SourceKind) *types.Asset {
	candidates := lo.Filter(release.Assets, func(a types.Asset, _ int) bool {
		return IsPlatformCompatible(a.Name)
	})
	if len(candidates) == 0 {
		return nil
	}

	if len(preferredSuffixes) > 0 {
		ranked := rankBySuffix(candidates, preferredSuffixes)
		if ranked != nil {
			candidates = ranked
		}
	}

	if installationSource == types.SourceURL {
		candidates = lo.Filter(candidates, func(a types.Asset, _ int) bool {
			return !unstableMarkerRe.MatchString(a.Name)
		})
	}

	if len(candidates) == 0 {
		return nil
	}
	chosen := candidates[0]
	return &chosen
}

// rankBySuffix reorders candidates so that assets matching an earlier
// entry in suffixes sort first; first-matching-suffix wins per candidate.
// If no candidate matches any suffix, returns nil (caller keeps the
// original, unranked list).
func rankBySuffix(candidates []types.Asset, suffixes []string) []types.Asset {
	rank := func(name string) int {
		for i, suf := range suffixes {
			if strings.HasSuffix(name, suf) {
				return i
			}
		}
		return len(suffixes)
	}

	anyMatch := lo.SomeBy(candidates, func(a types.Asset) bool {
		return rank(a.Name) < len(suffixes)
	})
	if !anyMatch {
		return nil
	}

	ranked := make([]types.Asset, len(candidates))
	copy(ranked, candidates)
	// Stable sort preserves original relative order among equal ranks
	// (spec.md §4.3 edge-case policy: ties broken by asset list order).
	stableSortBy(ranked, rank)
	return ranked
}

func stableSortBy(assets []types.Asset, rank func(string) int) {
	// Simple stable insertion sort: the candidate lists here are small
	// (a handful of release assets), so O(n^2) is preferable to pulling
	// in sort.SliceStable just for a rank comparator closure.
	for i := 1; i < len(assets); i++ {
		j := i
		for j > 0 && rank(assets[j].Name) < rank(assets[j-1].Name) {
			assets[j], assets[j-1] = assets[j-1], assets[j]
			j--
		}
	}
}

// FilterCompatibleAssets returns the shortlist of platform-compatible
// AppImage assets plus every checksum-file asset, for caching (spec.md §2 component 4: "pure filter+rank...
// producing either a shortlist (for caching) or one selected Asset").
func FilterCompatibleAssets(assets []types.Asset) []types.Asset {
	return lo.Filter(assets, func(a types.Asset, _ int) bool {
		return IsPlatformCompatible(a.Name) || IsChecksumFile(a.Name)
	})
}

// SelectChecksumFiles returns the checksum-file assets in a release that
// are relevant to its platform-compatible AppImage assets.
func SelectChecksumFiles(release types.Release) []types.Asset {
	appimages := lo.Filter(release.Assets, func(a types.Asset, _ int) bool {
		return IsPlatformCompatible(a.Name)
	})
	return lo.Filter(release.Assets, func(a types.Asset, _ int) bool {
		return IsRelevantChecksumFile(a.Name, appimages)
	})
}
