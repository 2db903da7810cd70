package statement

import (
	"strings"
	"sync"
)

// builderPool recycles scratch builders for the rewrite hot path. sync.Pool
// gives per-P caching without explicit thread affinity; an acquired builder
// must be released by the same call frame that took it and never retained
// past the call.
var builderPool = sync.Pool{
	New: func() any { return new(strings.Builder) },
}

func acquireBuilder() *strings.Builder {
	return builderPool.Get().(*strings.Builder)
}

func releaseBuilder(b *strings.Builder) {
	b.Reset()
	builderPool.Put(b)
}
