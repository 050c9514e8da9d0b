// Package protocol defines the connection request a client writes to the
// public FIFO and the naming of per-client private FIFO pairs.
//
// A request is a fixed 576-byte record: two 256-byte FIFO paths and a
// 64-byte locale name, each NUL-padded. It is encoded as XDR fixed-length
// opaque data, which is byte-identical to the padded C layout, and is small
// enough that a single write to the public FIFO is atomic.
package protocol
