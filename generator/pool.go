package generator

import "sync"

const (
	// Pool limits to prevent memory bloat
	poolMaxCap  = 1 << 20
	poolInitCap = 4096

	// Encoding gives up once a value needs more than this.
	encodeMaxSize = 1 << 26
)

// scratch buffers for dynamic encoding
var bufPool = sync.Pool{
	New: func() any {
		buf := make([]byte, poolInitCap)
		return &buf
	},
}

func getBuf() *[]byte {
	return bufPool.Get().(*[]byte)
}

func putBuf(buf *[]byte) {
	if buf == nil || cap(*buf) > poolMaxCap {
		return // reject oversized
	}
	*buf = (*buf)[:cap(*buf)]
	bufPool.Put(buf)
}
