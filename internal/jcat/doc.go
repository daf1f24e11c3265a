// Package jcat reads and writes Jcat catalog-of-hashes containers.
//
// A container holds items addressed by an id and optional alias ids, each
// carrying ordered proof blobs (digests and detached signatures). The wire
// format is gzip-compressed JSON and is parsed by fwupd clients, so field
// names and blob kind numbers are fixed.
package jcat
