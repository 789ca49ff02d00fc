// Package install implements persistence for the install record.
//
// The FileRepository stores and loads the record as YAML on disk and exposes
// a Repository interface that the installer service depends on. At most one
// record exists at a time.
package install
