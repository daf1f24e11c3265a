// Package builder regenerates the signed metadata of a remote.
//
// A build claims the remote, merges the included firmware into one
// catalog, signs it, writes the dated file, the latest alias, the legacy
// detached signature and the Jcat container, then records the build,
// purges caches and prunes old dated files. Guards that stop a build are
// reported as skipped results, not errors.
package builder
