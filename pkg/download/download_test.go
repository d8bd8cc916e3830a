package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/progress"
	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/types"
)

func TestDownloadFile_WritesDestAndCleansUpPart(t *testing.T) {
	body := strings.Repeat("a", 4096)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "file.bin")

	svc := New(progress.NewNoopReporter())
	require.NoError(t, svc.DownloadFile(context.Background(), srv.URL, dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, body, string(data))

	_, statErr := os.Stat(dest + ".part")
	assert.True(t, os.IsNotExist(statErr))
}

func TestDownloadFile_NonRetryableStatusUnlinksPart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "file.bin")

	svc := New(progress.NewNoopReporter())
	err := svc.DownloadFile(context.Background(), srv.URL, dest)
	require.Error(t, err)

	_, statErr := os.Stat(dest + ".part")
	assert.True(t, os.IsNotExist(statErr))
	_, statErr = os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

func TestDownloadAppImage_LabelsWithAssetName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("appimage-bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "myapp.AppImage")
	asset := types.Asset{Name: "myapp.AppImage", DownloadURL: srv.URL}

	svc := New(progress.NewNoopReporter())
	path, err := svc.DownloadAppImage(context.Background(), asset, dest)
	require.NoError(t, err)
	assert.Equal(t, dest, path)
}

func TestDownloadChecksumFile_ReturnsBodyText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("deadbeef  myapp.AppImage\n"))
	}))
	defer srv.Close()

	svc := New(progress.NewNoopReporter())
	text, err := svc.DownloadChecksumFile(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "deadbeef  myapp.AppImage\n", text)
}

// activeReporter is a NoopReporter that reports itself active and counts
// the tasks added to it, so the download progress path is taken.
type activeReporter struct {
	*progress.NoopReporter
	added int
}

func (r *activeReporter) IsActive() bool { return true }

func (r *activeReporter) AddTask(name string, kind progress.Kind, total int64, description string, parentTaskID string, phase, totalPhases int) string {
	r.added++
	return r.NoopReporter.AddTask(name, kind, total, description, parentTaskID, phase, totalPhases)
}

func TestDownloadFile_ProgressTaskCreatedForLargeFiles(t *testing.T) {
	body := strings.Repeat("x", ProgressThresholdBytes+1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.Write([]byte(body))
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "big.bin")
	rep := &activeReporter{NoopReporter: progress.NewNoopReporter()}
	svc := New(rep)
	require.NoError(t, svc.DownloadFile(context.Background(), srv.URL, dest))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Len(t, data, len(body))
	assert.Equal(t, 1, rep.added)
}
