package orchestrator

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/catalog"
	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/installer"
	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/progress"
	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/state"
	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/types"
)

func newGinkgoOrchestrator(releases map[string]types.Release) (*Orchestrator, *state.Store, string) {
	root := GinkgoT().TempDir()
	st, err := state.New(filepath.Join(root, "state"))
	Expect(err).NotTo(HaveOccurred())

	in := installer.New(fakeVerifier{}, fakeIconDownloader{}, st, nil,
		installer.WithInstallDir(filepath.Join(root, "install")),
		installer.WithIconDir(filepath.Join(root, "icons")),
		installer.WithDesktopDir(filepath.Join(root, "desktop")),
		installer.WithBackupDir(filepath.Join(root, "backup")),
	)

	cat, err := catalog.Load()
	Expect(err).NotTo(HaveOccurred())

	return New(cat, &fakeResolver{releases: releases}, fakeDownloader{}, in, st, nil), st, root
}

var _ = Describe("Install with --no-desktop", func() {
	It("skips writing a desktop entry for the installed app", func() {
		orch, _, root := newGinkgoOrchestrator(map[string]types.Release{
			"FreeTubeApp/FreeTube": stubRelease("1.0.0"),
		})

		summary := orch.Install(context.Background(), []string{"freetube"}, Options{VerifyDownloads: true, NoDesktop: true}, progress.NewNoopReporter())

		Expect(summary.Results).To(HaveLen(1))
		Expect(summary.Results[0].Success).To(BeTrue())
		Expect(summary.Results[0].DesktopResult).To(BeEmpty())

		entries, err := os.ReadDir(filepath.Join(root, "desktop"))
		if err == nil {
			Expect(entries).To(BeEmpty())
		}
	})
})

var _ = Describe("Update with --force", func() {
	It("re-applies an update even when the installed version is already current", func() {
		orch, st, _ := newGinkgoOrchestrator(map[string]types.Release{
			"FreeTubeApp/FreeTube": stubRelease("1.0.0"),
		})
		Expect(st.Save(state.NewInstalledState(
			"FreeTube", types.SourceCatalog, &types.CatalogRef{Owner: "FreeTubeApp", Repo: "FreeTube", Channel: types.ChannelStable}, nil,
			"1.0.0", "/tmp/FreeTube.AppImage", types.VerificationResult{Passed: true}, types.IconRecord{},
		))).To(Succeed())

		summary, err := orch.Update(context.Background(), nil, Options{VerifyDownloads: true, Force: true}, progress.NewNoopReporter())

		Expect(err).NotTo(HaveOccurred())
		Expect(summary.Updated).To(HaveLen(1))
		Expect(summary.Updated[0].Name).To(Equal("FreeTube"))
	})
})
