// Package eventstream defines progress events and their wire encodings.
//
// Encode produces server-sent-events frames: "data: " lines terminated by a
// blank line, with heartbeats as an empty ":" comment frame. SSEWriter and
// WSWriter deliver events over HTTP and WebSocket connections, and Decoder
// turns an SSE byte stream back into events for command-line clients.
package eventstream
