// Package release resolves the latest published server release from the
// GitHub releases API and converts it into the domain model after an
// explicit shape check.
package release
