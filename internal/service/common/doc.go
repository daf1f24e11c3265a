// Package common holds helpers shared by several services.
//
// It provides a lightweight gRPC client for the metadata service, detection
// of the lease owner of this process, and construction of the configured
// signers.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
