package release

import "time"

// Descriptor describes a published release. Immutable once fetched.
type Descriptor struct {
	// Name is the release tag or title (usually a semver tag).
	Name string
	// ID is the release identifier assigned by the hosting service.
	ID int64
	// PublishedAt is the publication timestamp of the release.
	PublishedAt time.Time
	// Assets are the downloadable files of the release, in listed order.
	Assets []Asset
}

// Asset is a single downloadable file within a release.
// Its name encodes the target platform.
type Asset struct {
	// Name is the asset filename.
	Name string
	// DownloadURL is the direct download location of the asset.
	DownloadURL string
	// Size is the advertised asset size in bytes, zero when unknown.
	Size int64
}

// InstalledRecord is the durable pointer to the currently installed binary.
// At most one record exists at a time; it is overwritten only after a
// release has been fully extracted and verified.
type InstalledRecord struct {
	// Timestamp is the publish timestamp of the installed release, RFC 3339.
	Timestamp string `yaml:"timestamp"`
	// Path is the location of the installed executable.
	Path string `yaml:"path"`
	// Version is the tag of the installed release, when known.
	Version string `yaml:"version,omitempty"`
	// Checksum is the base64-encoded SHA-512 of the installed executable.
	Checksum string `yaml:"checksum,omitempty"`
}

// Clone returns a copy of the record to avoid leaking internal references.
func (r *InstalledRecord) Clone() *InstalledRecord {
	if r == nil {
		return nil
	}

	cloned := *r

	return &cloned
}
