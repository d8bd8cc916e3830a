package installer

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/apperrors"
	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/state"
	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/types"
)

var _ = Describe("Remove", func() {
	var (
		in   *Installer
		opts Options
	)

	BeforeEach(func() {
		root := GinkgoT().TempDir()
		opts = Options{
			InstallDir:      filepath.Join(root, "install"),
			IconDir:         filepath.Join(root, "icons"),
			DesktopDir:      filepath.Join(root, "desktop"),
			BackupDir:       filepath.Join(root, "backup"),
			BackupRetention: 3,
		}
		st, err := state.New(filepath.Join(root, "state"))
		Expect(err).NotTo(HaveOccurred())

		in = New(&fakeVerifier{result: types.VerificationResult{Passed: true}}, &fakeIconDownloader{}, st, nil,
			WithInstallDir(opts.InstallDir), WithIconDir(opts.IconDir), WithDesktopDir(opts.DesktopDir),
			WithBackupDir(opts.BackupDir), WithBackupRetention(opts.BackupRetention))
	})

	Context("when the app is installed with an icon and desktop entry", func() {
		It("deletes the AppImage, icon, desktop entry, and state record", func() {
			installPath := filepath.Join(opts.InstallDir, "myapp.AppImage")
			Expect(os.MkdirAll(opts.InstallDir, 0o755)).To(Succeed())
			Expect(os.WriteFile(installPath, []byte("bytes"), 0o755)).To(Succeed())

			iconPath := filepath.Join(opts.IconDir, "myapp.png")
			Expect(os.MkdirAll(opts.IconDir, 0o755)).To(Succeed())
			Expect(os.WriteFile(iconPath, []byte("icon"), 0o644)).To(Succeed())

			desktopPath := filepath.Join(opts.DesktopDir, "myapp.desktop")
			Expect(os.MkdirAll(opts.DesktopDir, 0o755)).To(Succeed())
			Expect(os.WriteFile(desktopPath, []byte("[Desktop Entry]"), 0o644)).To(Succeed())

			Expect(in.states.Save(types.AppState{
				Name:             "myapp",
				Source:           types.SourceCatalog,
				CatalogRef:       &types.CatalogRef{Owner: "o", Repo: "r"},
				InstalledVersion: "1.0.0",
				InstalledAt:      time.Unix(0, 0),
				InstallPath:      installPath,
				Icon:             types.IconRecord{Installed: true, Path: iconPath},
			})).To(Succeed())

			Expect(in.Remove("myapp")).To(Succeed())

			Expect(installPath).NotTo(BeAnExistingFile())
			Expect(iconPath).NotTo(BeAnExistingFile())
			Expect(desktopPath).NotTo(BeAnExistingFile())

			st, err := in.states.Load("myapp")
			Expect(err).NotTo(HaveOccurred())
			Expect(st).To(BeNil())
		})
	})

	Context("when the app has no persisted state", func() {
		It("returns a validation error and touches nothing", func() {
			err := in.Remove("ghost")
			Expect(err).To(HaveOccurred())
			var verr *apperrors.ValidationError
			Expect(err).To(BeAssignableToTypeOf(verr))
		})
	})
})
