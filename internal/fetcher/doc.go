// Package fetcher streams compressed release assets over HTTP through
// decompression and archive extraction into a local directory, reporting
// progress as bytes arrive. The full payload is never buffered in memory.
package fetcher
