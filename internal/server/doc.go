// Package server implements the MCP (Model Context Protocol) server for local
// background removal.
//
// This package provides a JSON-RPC 2.0 server that exposes the background
// removal pipeline through the MCP protocol, so MCP-compatible clients can cut
// subjects out of image files without sending them anywhere. Everything runs
// in-process; the server never opens a network socket. The only network
// traffic is the one-time download of model weights.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses and notifications on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
//   - list_models: Registry contents and which model is loaded
//   - describe_model: One model's resolution, normalization and weight URL
//   - remove_background: Run the pipeline on a file and write the cut-out
//
// # Progress
//
// When a tools/call request carries _meta.progressToken, weight downloads are
// reported as notifications/progress messages with total 1. Progress values
// never decrease and the final 1 is sent once.
//
// # Model Session
//
// The server owns one session: at most one model is loaded at a time.
// Calling remove_background with a different model releases the previous one
// before the new weights are loaded.
//
// # Image Caching
//
// Decoded source images are cached by path, so trying several models on the
// same picture decodes it only once. The cache persists for the lifetime of
// the server process.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The error string, prefixed with the failing pipeline stage
//
// # Usage
//
// The server is typically started by an MCP client through "rmbg serve":
//
//	p := pipeline.New(session.New(loader, logger), rs, logger)
//	srv := server.New(p, registry.U2NetP, logger)
//	if err := srv.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
