// Package common provides shared utilities for MCP tool implementations:
// the instrumented handler wrapper, argument parsing and result encoding.
package common
