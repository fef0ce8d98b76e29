// Package subprocess provides the process transports for esbuild.
//
// ServiceTransport spawns esbuild in service mode and exchanges framed packets
// over its stdin and stdout. It implements config.Transport and handles the
// process lifecycle, the version handshake and serialized writes.
//
// RunCommand runs esbuild once with command line arguments and collects its
// combined output.
package subprocess
