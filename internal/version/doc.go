// Package version exposes build metadata for the fwmeta binaries.
//
// Version, Commit and BuildTime may be injected with ldflags. Commit and
// BuildTime otherwise come from the VCS stamps of the Go build. UserAgent is
// sent with cache purge requests.
package version
