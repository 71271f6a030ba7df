package chunkfile

import (
	"context"

	metrics "github.com/ipfs/go-metrics-interface"
)

type writerMetrics struct {
	chunks metrics.Counter
	bytes  metrics.Counter
}

func newWriterMetrics(ctx context.Context) writerMetrics {
	return writerMetrics{
		chunks: metrics.NewCtx(ctx, "chunkfile.chunks_written_total", "Number of chunks written").Counter(),
		bytes:  metrics.NewCtx(ctx, "chunkfile.chunk_bytes_written_total", "Number of payload bytes written").Counter(),
	}
}

type readerMetrics struct {
	opened     metrics.Counter
	mismatches metrics.Counter
}

func newReaderMetrics(ctx context.Context) readerMetrics {
	return readerMetrics{
		opened:     metrics.NewCtx(ctx, "chunkfile.chunks_opened_total", "Number of chunks opened for reading").Counter(),
		mismatches: metrics.NewCtx(ctx, "chunkfile.marker_mismatches_total", "Number of chunk markers that did not match the expected id").Counter(),
	}
}
