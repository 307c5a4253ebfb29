// Package protocol implements the per-connection session state
// machine around the realmd wire format.
//
// A Session moves through AwaitingFirstMessage, optionally
// Negotiating (for variants that greet with a challenge), Active and
// finally Closed. Each frame delivered by the connection runs the
// decode pipeline before the payload reaches the variant handler:
// checksum or sequence verification, XTEA decryption, padding strip.
// Outgoing messages run the reverse pipeline at finalize time:
// deflate, padding, XTEA, checksum, block-length header.
//
// Protocol variants form a closed set (status, login, game) selected
// by the identifier byte of a session's first frame, or pre-bound at
// accept time for ports whose sole variant sends a login challenge.
//
// Buffer-local errors never escape the codec. Every protocol-level
// error (checksum mismatch, misaligned ciphertext, failed RSA
// handshake) terminates the session through the single Disconnect
// path. Nothing here retries.
package protocol
