// Package netmsg implements the message buffers exchanged over a game
// connection.
//
// Every buffer reserves its first seven bytes for framing headers:
//
//	offset 0..1   block length (2 bytes, little-endian)
//	offset 2..5   checksum or sequence value (present when checksums are on)
//	offset 6      padding byte count
//	offset 7..N   payload
//
// NetworkMessage is the bounds-checked read/write codec over that
// layout. OutputMessage specializes it for replies: application writes
// grow the payload forward from offset 7 while finalize-time headers
// are prepended into the reserve. OutputMessagePool recycles output
// buffers and batches per-session sends into one socket write per
// scheduler tick.
//
// Reads never panic: a read past the valid payload returns the zero
// value and latches the overrun flag, which callers must check before
// trusting anything read after a failure. Writes past capacity are
// logged and dropped without touching bytes already written.
package netmsg
