package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cyber-Syntax/my-unicorn-sub006/pkg/types"
)

func TestIsPlatformCompatible(t *testing.T) {
	accept := []string{
		"myapp-1.2.3-x86_64.AppImage",
		"myapp-1.2.3-amd64.AppImage",
		"myapp.AppImage",
	}
	for _, name := range accept {
		assert.True(t, IsPlatformCompatible(name), "expected accept: %s", name)
	}

	reject := []string{
		"myapp-1.2.3.exe",
		"myapp-1.2.3-Windows.zip",
		"myapp-1.2.3-darwin.AppImage",
		"myapp-1.2.3-mac.dmg",
		"myapp-1.2.3-arm64.AppImage",
		"myapp-1.2.3-armhf.AppImage",
		"myapp-src-1.2.3.tar.gz",
		"myapp-1.2.3-nightly.AppImage",
		"myapp-1.2.3.tar.gz", // not an AppImage at all
	}
	for _, name := range reject {
		assert.False(t, IsPlatformCompatible(name), "expected reject: %s", name)
	}
}

func TestIsChecksumFile(t *testing.T) {
	assert.True(t, IsChecksumFile("myapp-1.2.3-x86_64.AppImage.sha256"))
	assert.True(t, IsChecksumFile("SHA256SUMS"))
	assert.True(t, IsChecksumFile("latest-linux.yml"))
	assert.False(t, IsChecksumFile("myapp-1.2.3-x86_64.AppImage"))
}

func TestIsRelevantChecksumFile(t *testing.T) {
	appimages := []types.Asset{{Name: "myapp-1.2.3-x86_64.AppImage"}}

	assert.True(t, IsRelevantChecksumFile("myapp-1.2.3-x86_64.AppImage.sha256", appimages))
	assert.True(t, IsRelevantChecksumFile("SHA256SUMS", appimages))
	assert.True(t, IsRelevantChecksumFile("latest-linux.yml", appimages))
	assert.False(t, IsRelevantChecksumFile("otherapp-9.9.9.AppImage.sha256", appimages))
	assert.False(t, IsRelevantChecksumFile("myapp-1.2.3-x86_64.AppImage", appimages)) // not a checksum file
}

func TestSelectAppImageForPlatform_FiltersAndRanks(t *testing.T) {
	release := types.Release{
		Assets: []types.Asset{
			{Name: "myapp-1.2.3-Windows.exe"},
			{Name: "myapp-1.2.3-arm64.AppImage"},
			{Name: "myapp-1.2.3.AppImage"},
			{Name: "myapp-1.2.3-x86_64.AppImage"},
		},
	}

	chosen := SelectAppImageForPlatform(release, []string{"-x86_64.AppImage"}, types.SourceCatalog)
	require.NotNil(t, chosen)
	assert.Equal(t, "myapp-1.2.3-x86_64.AppImage", chosen.Name)
}

func TestSelectAppImageForPlatform_NoMatchingSuffixKeepsOriginalOrder(t *testing.T) {
	release := types.Release{
		Assets: []types.Asset{
			{Name: "myapp-1.2.3.AppImage"},
			{Name: "myapp-1.2.3-x86_64.AppImage"},
		},
	}

	chosen := SelectAppImageForPlatform(release, []string{"-unused-suffix"}, types.SourceCatalog)
	require.NotNil(t, chosen)
	assert.Equal(t, "myapp-1.2.3.AppImage", chosen.Name)
}

func TestSelectAppImageForPlatform_URLInstallFiltersPrerelease(t *testing.T) {
	release := types.Release{
		Assets: []types.Asset{
			{Name: "myapp-1.2.3-beta.AppImage"},
			{Name: "myapp-1.2.3.AppImage"},
		},
	}

	chosen := SelectAppImageForPlatform(release, nil, types.SourceURL)
	require.NotNil(t, chosen)
	assert.Equal(t, "myapp-1.2.3.AppImage", chosen.Name)
}

func TestSelectAppImageForPlatform_CatalogInstallKeepsPrerelease(t *testing.T) {
	release := types.Release{
		Assets: []types.Asset{
			{Name: "myapp-1.2.3-beta.AppImage"},
		},
	}

	chosen := SelectAppImageForPlatform(release, nil, types.SourceCatalog)
	require.NotNil(t, chosen)
	assert.Equal(t, "myapp-1.2.3-beta.AppImage", chosen.Name)
}

func TestSelectAppImageForPlatform_NoCandidatesReturnsNil(t *testing.T) {
	release := types.Release{Assets: []types.Asset{{Name: "myapp.exe"}}}
	assert.Nil(t, SelectAppImageForPlatform(release, nil, types.SourceCatalog))
}

func TestFilterCompatibleAssets(t *testing.T) {
	assets := []types.Asset{
		{Name: "myapp.AppImage"},
		{Name: "myapp.AppImage.sha256"},
		{Name: "myapp.exe"},
	}
	got := FilterCompatibleAssets(assets)
	require.Len(t, got, 2)
}

func TestSelectChecksumFiles(t *testing.T) {
	release := types.Release{
		Assets: []types.Asset{
			{Name: "myapp-1.2.3-x86_64.AppImage"},
			{Name: "myapp-1.2.3-x86_64.AppImage.sha256"},
			{Name: "unrelated.AppImage.sha256"},
		},
	}
	got := SelectChecksumFiles(release)
	require.Len(t, got, 1)
	assert.Equal(t, "myapp-1.2.3-x86_64.AppImage.sha256", got[0].Name)
}
