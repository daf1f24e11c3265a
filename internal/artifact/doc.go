// Package artifact stores published metadata files in the download directory.
//
// Every write replaces the target atomically: the new bytes land in a hidden
// sibling file, are verified against their SHA256 digest and renamed over
// the target, so clients never observe a partially written file.
package artifact
