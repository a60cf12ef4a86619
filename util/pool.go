package util

import "sync"

// DefaultBufSize is the size of the read buffers handed to receive loops
// (32 KiB).
const DefaultBufSize = 32 * 1024

// BufPool provides reusable read buffers so that a busy acceptor does not
// allocate one per communicator.
var BufPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, DefaultBufSize)
		return &buf
	},
}

// GetBuf retrieves a buffer from the pool.  Callers must return it
// with [PutBuf] when finished.
func GetBuf() *[]byte {
	return BufPool.Get().(*[]byte)
}

// PutBuf returns a buffer to the pool for reuse.
func PutBuf(buf *[]byte) {
	if buf == nil {
		return
	}
	BufPool.Put(buf)
}
