// Package mcp exposes the esbuild service as Model Context Protocol tools.
//
// The server registers a "transform" tool backed by a running service and a
// "run" tool backed by one-shot esbuild invocations. It is normally served
// over stdio by the esbuild-service command.
package mcp
