// Package protocol implements the binary service protocol spoken by esbuild.
//
// Frames are a little-endian uint32 payload length followed by the payload.
// A payload is a packet: a uint32 holding the request id shifted left by one
// with the direction in bit 0 (0 request, 1 response), followed by a value
// tree. Values start with a one byte type tag:
//
//	0 null
//	1 bool    one byte, non-zero is true
//	2 int32   little-endian
//	3 string  uint32 length + UTF-8 bytes
//	4 binary  uint32 length + bytes
//	5 array   uint32 count + values
//	6 map     uint32 count + (uint32 length + key bytes, value) pairs
//
// The top-level value of every packet is a map.
//
// The Controller correlates requests with responses arriving on a Transport
// and answers the keepalive pings the service sends:
//
//	controller := protocol.NewController(log, transport, nil)
//	controller.Start(ctx)
//
//	call, err := controller.Send(ctx, request)
//	response, err := call.Wait(ctx)
package protocol
