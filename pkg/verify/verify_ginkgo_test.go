package verify

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/types"
)

func writeGinkgoTempFile(content string) string {
	dir := GinkgoT().TempDir()
	path := filepath.Join(dir, "myapp.AppImage")
	Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())
	return path
}

var _ = Describe("Verify", func() {
	var fetcher *fakeFetcher

	BeforeEach(func() {
		fetcher = &fakeFetcher{content: map[string]string{}}
	})

	Context("when the app's config requests skip but a digest is present", func() {
		It("overrides skip back to false and still verifies", func() {
			content := "appimage-bytes"
			path := writeGinkgoTempFile(content)

			asset := types.Asset{Name: "myapp.AppImage", Digest: "sha256:" + sha256Hex(content)}
			config := types.AppConfig{Name: "myapp", Verify: types.VerifyConfig{Skip: true}}

			v := New(fetcher)
			result, err := v.Verify(context.Background(), path, asset, types.Release{}, config)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Passed).To(BeTrue())
			Expect(result.UpdatedConfig.Verify.Skip).To(BeFalse())
			Expect(result.Methods).To(HaveKey("digest"))
		})
	})

	Context("when neither digest nor checksum file is available and skip is requested", func() {
		It("passes trivially with a warning and no methods run", func() {
			path := writeGinkgoTempFile("appimage-bytes")
			asset := types.Asset{Name: "myapp.AppImage"}
			config := types.AppConfig{Name: "myapp", Verify: types.VerifyConfig{Skip: true}}

			v := New(fetcher)
			result, err := v.Verify(context.Background(), path, asset, types.Release{}, config)

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Passed).To(BeTrue())
			Expect(result.Methods).To(BeEmpty())
			Expect(result.Warning).To(Equal("no verification methods available"))
		})
	})

	Context("when the digest method and the checksum-file method disagree", func() {
		It("still passes as long as one method succeeds, with a partial warning", func() {
			content := "appimage-bytes"
			path := writeGinkgoTempFile(content)

			manifest := sha256Hex(content) + "  myapp.AppImage\n"
			release := types.Release{Assets: []types.Asset{
				{Name: "myapp.AppImage"},
				{Name: "SHA256SUMS", DownloadURL: "https://example.test/SHA256SUMS"},
			}}
			asset := types.Asset{Name: "myapp.AppImage", Digest: "sha256:deadbeef"}
			fetcher.content["https://example.test/SHA256SUMS"] = manifest

			v := New(fetcher)
			result, err := v.Verify(context.Background(), path, asset, release, types.AppConfig{Name: "myapp"})

			Expect(err).NotTo(HaveOccurred())
			Expect(result.Passed).To(BeTrue())
			Expect(result.Warning).To(ContainSubstring("Partial verification"))
		})
	})
})
