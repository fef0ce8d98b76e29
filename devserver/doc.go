// Package devserver serves a TypeScript front end during development.
//
// Requests for <context>/frontend/<path>.js are answered by transpiling
// <root>/src/<path>.ts (or .tsx) through a running esbuild service. A
// transform diagnostic is logged and answered with a small JavaScript module
// that shows the error in a dialog, so the page reports the problem instead
// of failing silently. Every other file below /frontend/ is served from the
// source directory with caching disabled.
//
// The package also generates import maps for bare "~/path" imports and
// prepares a production copy of the front end with Prepare.
package devserver
