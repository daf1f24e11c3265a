// Package gpg signs metadata with OpenPGP armored detached signatures.
package gpg
