package transport

import "sync"

// rxBufferPool recycles per-connection reassembly buffers. DoIP connections
// all use the same fixed capacity (constants.RxBufferSize), unlike a
// block-device workload with wildly varying I/O sizes, so a single pooled
// size is enough here — no size-bucketing needed.
var rxBufferPool = sync.Pool{
	New: func() any {
		b := make([]byte, rxBufferSize)
		return &b
	},
}

func getRxBuffer() []byte {
	return (*rxBufferPool.Get().(*[]byte))[:rxBufferSize]
}

func putRxBuffer(buf []byte) {
	buf = buf[:cap(buf)]
	rxBufferPool.Put(&buf)
}
