// Package ctl implements the operator client of the metadata server.
//
// It queues builds and lists remotes over gRPC and prints the responses as JSON.
package ctl
