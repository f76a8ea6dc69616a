// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package thriftrpc

import "context"

// CallContext provides request-scoped information to method handlers.
type CallContext struct {
	// Ctx is the request-scoped context, carrying cancellation and deadlines.
	Ctx context.Context
	// Service is the name of the service declaring the method.
	Service string
	// Method is the name of the RPC method being invoked.
	Method string
	// SeqID is the sequence id from the message header.
	SeqID int32
	// RequestID is a server-generated identifier unique to this dispatch.
	RequestID string
	// ServerID is the server identifier set via [Processor.SetServerID].
	ServerID string
	// Oneway is true when no reply will be written.
	Oneway bool
	// Metadata holds transport-level metadata such as HTTP headers.
	Metadata map[string]string
}

type metadataKey struct{}

// ContextWithMetadata attaches transport metadata to ctx. Processors expose
// it to hooks and handlers.
func ContextWithMetadata(ctx context.Context, md map[string]string) context.Context {
	return context.WithValue(ctx, metadataKey{}, md)
}

// MetadataFromContext returns metadata attached by ContextWithMetadata.
func MetadataFromContext(ctx context.Context) map[string]string {
	md, _ := ctx.Value(metadataKey{}).(map[string]string)
	return md
}
