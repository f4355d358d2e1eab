// Package protocol implements the stdio MCP client used for tool discovery.
//
// The wire format is newline-delimited JSON-RPC 2.0 spoken over a subprocess's
// standard input and output. A Connection owns exactly one subprocess and is
// single-use: it connects, performs the fixed initialize handshake, serves any
// number of tools/list and tools/call round trips, and is torn down once.
//
// # Messages
//
// Message is an explicit tagged union over the three JSON-RPC variants:
//   - Request: has a method and an id, expects a response
//   - Notification: has a method and no id, never receives a response
//   - Response: has an id and either a result or an error
//
// # Handshake
//
// The handshake order is fixed and no request is permitted out of order:
//  1. initialize request (protocol version + client capabilities)
//  2. notifications/initialized notification (fire-and-forget)
//  3. any number of tools/list and tools/call requests
//
// # Correlation
//
// At most one request is outstanding at a time; the next line read from the
// server is taken as the response to the request just written. Response ids
// are not matched against request ids. Pipelining requests on one connection
// would require id-based demultiplexing and is not supported.
package protocol
