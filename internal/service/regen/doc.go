// Package regen runs metadata builds in the foreground and exports
// unsigned catalog variants for local use.
package regen
