package platform

import (
	"fmt"
	"strings"

	domain "github.com/okarpov/serverkeeper/internal/domain/release"
)

// Tag is the canonical platform identifier encoded into release asset names.
type Tag string

// Supported platform tags. The values match the naming convention of
// published release assets exactly.
const (
	Windows64  Tag = "Windows-64bit"
	Linux64    Tag = "Linux-64bit"
	LinuxARM64 Tag = "Linux-ARM64"
	MacOS64    Tag = "macOS-64bit"
	MacOSARM64 Tag = "macOS-ARM64"
)

// String returns the canonical asset-name form of the tag.
func (t Tag) String() string {
	return string(t)
}

// supportedPlatforms is the closed table of (arch, os) pairs with published
// binaries. Pairs outside the table are an explicit error, never a default.
var supportedPlatforms = map[[2]string]Tag{
	{"amd64", "windows"}: Windows64,
	{"amd64", "linux"}:   Linux64,
	{"arm64", "linux"}:   LinuxARM64,
	{"amd64", "darwin"}:  MacOS64,
	{"arm64", "darwin"}:  MacOSARM64,
}

// UnsupportedPlatformError reports an (arch, os) pair without a published binary.
type UnsupportedPlatformError struct {
	// Arch is the CPU architecture that failed to match (GOARCH form).
	Arch string
	// OS is the operating system that failed to match (GOOS form).
	OS string
}

// Error implements the error interface with a remediation hint, since the
// operator can still build the server from source and configure its path.
func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf(
		"no prebuilt server binary for %s/%s; build it from source and set the server path override",
		e.OS, e.Arch,
	)
}

// AssetNotFoundError reports a supported platform whose asset is missing from
// a particular release. Distinct from UnsupportedPlatformError: here the
// platform is fine, the release is incomplete.
type AssetNotFoundError struct {
	// Tag is the platform tag that no asset name contained.
	Tag Tag
	// Release is the name of the release that was searched.
	Release string
}

// Error implements the error interface.
func (e *AssetNotFoundError) Error() string {
	return fmt.Sprintf("release %q has no asset for platform %s", e.Release, e.Tag)
}

// Match maps a (CPU architecture, operating system) pair in GOARCH/GOOS form
// to the platform tag used by release asset names.
func Match(arch, os string) (Tag, error) {
	tag, ok := supportedPlatforms[[2]string{arch, os}]
	if !ok {
		return "", &UnsupportedPlatformError{Arch: arch, OS: os}
	}

	return tag, nil
}

// SelectAsset picks the first asset, in listed order, whose name contains the
// tag's canonical string.
func SelectAsset(assets []domain.Asset, tag Tag) (domain.Asset, error) {
	for _, asset := range assets {
		if strings.Contains(asset.Name, tag.String()) {
			return asset, nil
		}
	}

	return domain.Asset{}, &AssetNotFoundError{Tag: tag}
}

// SelectReleaseAsset is SelectAsset with the release name attached to the
// error for operator-facing messages.
func SelectReleaseAsset(desc *domain.Descriptor, tag Tag) (domain.Asset, error) {
	asset, err := SelectAsset(desc.Assets, tag)
	if err != nil {
		return domain.Asset{}, &AssetNotFoundError{Tag: tag, Release: desc.Name}
	}

	return asset, nil
}
