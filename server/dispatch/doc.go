// Package dispatch routes decoded frames to the board Device, the
// registry, and the fastboot buffer, mirroring cdba-server.c's
// handle_stdin switch table. One Dispatcher is created per accepted
// session; its log lines carry the per-session correlation ID that
// cmd/cdba-server attaches to the process-wide logger.
package dispatch
