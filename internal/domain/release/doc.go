// Package release holds the domain model shared by the resolver, fetcher,
// and installer: release descriptors, assets, the persisted install record,
// download progress snapshots, and the transport error taxonomy.
package release
