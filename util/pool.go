package util

import "sync"

// relayBufs holds the copy buffers used by BidirectionalCopy.  A relay
// keeps two in flight, one per direction.
var relayBufs = sync.Pool{
	New: func() any {
		buf := make([]byte, DefaultBufSize)
		return &buf
	},
}

// GetBuf takes a DefaultBufSize buffer from the pool; hand it back with
// PutBuf.
func GetBuf() *[]byte { return relayBufs.Get().(*[]byte) }

// PutBuf returns buf to the pool.  Buffers that were resliced below
// DefaultBufSize capacity are dropped.
func PutBuf(buf *[]byte) {
	if buf == nil || cap(*buf) < DefaultBufSize {
		return
	}
	*buf = (*buf)[:DefaultBufSize]
	relayBufs.Put(buf)
}
