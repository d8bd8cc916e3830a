package installer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/progress"
	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/state"
	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/types"
)

type fakeVerifier struct {
	result types.VerificationResult
	err    error
}

func (f *fakeVerifier) Verify(ctx context.Context, filePath string, asset types.Asset, release types.Release, config types.AppConfig) (types.VerificationResult, error) {
	return f.result, f.err
}

type fakeIconDownloader struct {
	err error
}

func (f *fakeIconDownloader) DownloadFile(ctx context.Context, url, dest string) error {
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(dest, []byte("icon-bytes"), 0o644)
}

func newTestInstaller(t *testing.T, verifier Verifier) (*Installer, Options) {
	t.Helper()
	root := t.TempDir()
	opts := Options{
		InstallDir:      filepath.Join(root, "install"),
		IconDir:         filepath.Join(root, "icons"),
		DesktopDir:      filepath.Join(root, "desktop"),
		BackupDir:       filepath.Join(root, "backup"),
		BackupRetention: 3,
	}
	st, err := state.New(filepath.Join(root, "state"))
	require.NoError(t, err)

	in := New(verifier, &fakeIconDownloader{}, st, nil,
		WithInstallDir(opts.InstallDir), WithIconDir(opts.IconDir), WithDesktopDir(opts.DesktopDir),
		WithBackupDir(opts.BackupDir), WithBackupRetention(opts.BackupRetention))
	return in, opts
}

func writeDownloadedFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "download.tmp")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRun_InstallMovesFileAndWritesState(t *testing.T) {
	verifier := &fakeVerifier{result: types.VerificationResult{Passed: true}}
	in, opts := newTestInstaller(t, verifier)
	downloaded := writeDownloadedFile(t, "appimage-bytes")
	config := types.AppConfig{Name: "myapp", Source: types.SourceCatalog, Icon: types.IconConfig{Method: types.IconNone}}

	result := in.Run(context.Background(), OperationInstall, downloaded, types.Asset{Name: "myapp.AppImage"}, types.Release{Version: "1.0.0"}, config, &types.CatalogRef{Owner: "o", Repo: "r"}, progress.NewNoopReporter())

	require.True(t, result.Success)
	assert.Equal(t, filepath.Join(opts.InstallDir, "myapp.AppImage"), result.InstallPath)
	assert.FileExists(t, result.InstallPath)
	assert.NoFileExists(t, downloaded)

	info, err := os.Stat(result.InstallPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}

func TestRun_VerificationFailureAbortsBeforeMove(t *testing.T) {
	verifier := &fakeVerifier{err: assertError{"verification failed"}}
	in, opts := newTestInstaller(t, verifier)
	downloaded := writeDownloadedFile(t, "bytes")
	config := types.AppConfig{Name: "myapp"}

	result := in.Run(context.Background(), OperationInstall, downloaded, types.Asset{}, types.Release{}, config, nil, progress.NewNoopReporter())

	assert.False(t, result.Success)
	assert.Error(t, result.Error)
	assert.FileExists(t, downloaded) // never moved
	assert.NoDirExists(t, opts.InstallDir)
}

func TestRun_RenameToOverridesAppName(t *testing.T) {
	verifier := &fakeVerifier{result: types.VerificationResult{Passed: true}}
	in, opts := newTestInstaller(t, verifier)
	downloaded := writeDownloadedFile(t, "bytes")
	config := types.AppConfig{Name: "myapp", Naming: types.NamingConfig{RenameTo: "My Custom!! Name"}, Icon: types.IconConfig{Method: types.IconNone}}

	result := in.Run(context.Background(), OperationInstall, downloaded, types.Asset{}, types.Release{Version: "2.0.0"}, config, nil, progress.NewNoopReporter())

	require.True(t, result.Success)
	assert.Equal(t, filepath.Join(opts.InstallDir, "My-Custom-Name.AppImage"), result.InstallPath)
}

func TestRun_RenameToExpressionEvaluatesAgainstRelease(t *testing.T) {
	verifier := &fakeVerifier{result: types.VerificationResult{Passed: true}}
	in, opts := newTestInstaller(t, verifier)
	downloaded := writeDownloadedFile(t, "bytes")
	config := types.AppConfig{
		Name:   "myapp",
		Naming: types.NamingConfig{RenameTo: `name + "-" + version`},
		Icon:   types.IconConfig{Method: types.IconNone},
	}

	result := in.Run(context.Background(), OperationInstall, downloaded, types.Asset{}, types.Release{Version: "1.2.3"}, config, nil, progress.NewNoopReporter())

	require.True(t, result.Success)
	assert.Equal(t, filepath.Join(opts.InstallDir, "myapp-1.2.3.AppImage"), result.InstallPath)
}

func TestRun_IconDownloadMethodWritesIconFile(t *testing.T) {
	verifier := &fakeVerifier{result: types.VerificationResult{Passed: true}}
	in, opts := newTestInstaller(t, verifier)
	downloaded := writeDownloadedFile(t, "bytes")
	config := types.AppConfig{Name: "myapp", Icon: types.IconConfig{Method: types.IconDownload, DownloadURL: "https://example.test/icon.png"}}

	result := in.Run(context.Background(), OperationInstall, downloaded, types.Asset{}, types.Release{}, config, nil, progress.NewNoopReporter())

	require.True(t, result.Success)
	assert.True(t, result.IconResult.Installed)
	assert.FileExists(t, filepath.Join(opts.IconDir, "myapp.png"))
}

func TestRun_SkipDesktopOmitsDesktopEntry(t *testing.T) {
	verifier := &fakeVerifier{result: types.VerificationResult{Passed: true}}
	in, opts := newTestInstaller(t, verifier)
	in = in.WithSkipDesktop(true)
	downloaded := writeDownloadedFile(t, "bytes")
	config := types.AppConfig{Name: "myapp", Icon: types.IconConfig{Method: types.IconNone}}

	result := in.Run(context.Background(), OperationInstall, downloaded, types.Asset{}, types.Release{}, config, nil, progress.NewNoopReporter())

	require.True(t, result.Success)
	assert.Empty(t, result.DesktopResult)
	entries, err := os.ReadDir(opts.DesktopDir)
	if err == nil {
		assert.Empty(t, entries)
	}
}

func TestRun_UpdateBacksUpPriorInstall(t *testing.T) {
	verifier := &fakeVerifier{result: types.VerificationResult{Passed: true}}
	in, opts := newTestInstaller(t, verifier)
	config := types.AppConfig{Name: "myapp", Icon: types.IconConfig{Method: types.IconNone}}

	// First install.
	first := writeDownloadedFile(t, "v1-bytes")
	r1 := in.Run(context.Background(), OperationInstall, first, types.Asset{}, types.Release{Version: "1.0.0"}, config, nil, progress.NewNoopReporter())
	require.True(t, r1.Success)

	// Update.
	second := writeDownloadedFile(t, "v2-bytes")
	r2 := in.Run(context.Background(), OperationUpdate, second, types.Asset{}, types.Release{Version: "2.0.0"}, config, nil, progress.NewNoopReporter())
	require.True(t, r2.Success)

	entries, err := os.ReadDir(opts.BackupDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(r2.InstallPath)
	require.NoError(t, err)
	assert.Equal(t, "v2-bytes", string(data))
}

func TestPruneBackups_KeepsOnlyRetentionCount(t *testing.T) {
	verifier := &fakeVerifier{result: types.VerificationResult{Passed: true}}
	in, _ := newTestInstaller(t, verifier)
	in.opts.BackupRetention = 2
	require.NoError(t, os.MkdirAll(in.opts.BackupDir, 0o755))

	base := time.Now()
	for i := 0; i < 4; i++ {
		p := filepath.Join(in.opts.BackupDir, "myapp.AppImage."+string(rune('a'+i))+".bak")
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
		mtime := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, os.Chtimes(p, mtime, mtime))
	}

	removed, err := in.pruneBackups("myapp")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	entries, err := os.ReadDir(in.opts.BackupDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

type assertError struct{ msg string }

func (e assertError) Error() string { return e.msg }
