// Package signer defines the signing capability used to prove metadata.
//
// A Signer turns bytes into zero or more jcat blobs. A Set runs every
// registered signer over the same bytes: a configuration error aborts the
// whole run, any other failure only drops that signer's contribution.
package signer
