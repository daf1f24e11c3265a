// Package metadata implements the gRPC trigger API of the metadata builder.
//
// The service is declared by hand on protobuf well-known types, so no
// generated code is needed: requests are StringValue or Empty, responses are
// Struct documents.
package metadata
