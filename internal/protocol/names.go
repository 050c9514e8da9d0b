package protocol

import (
	"fmt"
	"path/filepath"
)

const fifoPrefix = "upcase"

// FIFONames returns the private FIFO pair for a client id inside dir. The
// first path carries client chunks to the server, the second carries
// replies back.
func FIFONames(dir, id string) (write, read string) {
	base := filepath.Join(filepath.Clean(dir), fmt.Sprintf("%s.%s", fifoPrefix, id))
	return base + ".wr", base + ".rd"
}
