// Package platform maps the running (architecture, OS) pair to the naming
// convention of platform-specific release assets and selects the matching
// asset from a release.
package platform
