// Package mcp bridges the tool registry and the Model Context Protocol.
//
// NewServer exposes every registered tool to MCP clients over Streamable HTTP,
// and Remote imports the tools of an external MCP server as ordinary tool
// descriptors so the orchestrator can call them like local tools.
package mcp
