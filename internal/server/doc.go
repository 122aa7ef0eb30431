// Package server implements the MCP (Model Context Protocol) server for chat
// screenshot extraction.
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Pipeline:
//   - chat_extract: Full extraction, returning the result with its regions and fragments
//   - chat_detect_regions: Message regions in reading order, optionally drawn on the image
//   - chat_prepare_region: One region as the OCR engine receives it
//   - text_normalize: Script normalization of arbitrary text
//
// Image Information:
//   - image_load: Dimensions, format and depth
//   - image_dominant_colors: Color palette and border background
//
// # Image Caching
//
// Decoded images are cached by path for the lifetime of the process, so an
// agent can detect regions, inspect a few of them and then extract without
// decoding the file again.
//
// # Error Handling
//
// Tool failures are returned as JSON-RPC errors with code -32000 and the Go
// error string as data. Pipeline errors keep their category in that string,
// e.g. "UNSUPPORTED_IMAGE: ...".
package server
