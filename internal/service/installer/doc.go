// Package installer decides where the server executable comes from: a
// configured override, the already-installed release, or a fresh download
// gated by operator consent. It owns the only write path to the install
// record.
package installer
