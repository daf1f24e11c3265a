// Package config defines the fwmeta service settings and provides helpers to
// load, validate and save them in YAML format.
//
// Config covers the record store location, the download directory, signer
// key locations, cache purging and the retry policy for background builds.
package config
