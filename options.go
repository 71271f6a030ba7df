package chunkfile

import (
	"context"

	"github.com/samber/lo"
)

// Options holds the configured options after applying a number of
// Option funcs.
//
// This type should not be used directly by end users; it's only exposed as a
// side effect of Option.
type Options struct {
	AcceptedAppIDs    []uint64
	StrictChunkEnd    bool
	SkipUnknownChunks bool

	DirectoryPadding uint64
	ChunkAlignment   uint64

	MetricsContext context.Context
}

// Option describes an option which affects behavior when reading or writing
// containers.
type Option func(*Options)

// ApplyOptions applies the given opts and returns the resulting Options.
func ApplyOptions(opts ...Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	if o.MetricsContext == nil {
		o.MetricsContext = context.Background()
	}
	return o
}

// accepts reports whether appID is allowed by these options. No accepted ids
// means every app id is allowed.
func (o Options) accepts(appID uint64) bool {
	return len(o.AcceptedAppIDs) == 0 || lo.Contains(o.AcceptedAppIDs, appID)
}

// AcceptAppIDs restricts readers to containers whose header carries one of
// the given app ids. Repeated use adds to the set.
func AcceptAppIDs(ids ...uint64) Option {
	return func(o *Options) {
		o.AcceptedAppIDs = lo.Uniq(append(o.AcceptedAppIDs, ids...))
	}
}

// StrictChunkEnd makes SequentialReader.End report ErrProtocol when a chunk
// is ended before its payload was fully read. The unread bytes are skipped
// either way.
func StrictChunkEnd(enable bool) Option {
	return func(o *Options) {
		o.StrictChunkEnd = enable
	}
}

// SkipUnknownChunks makes SequentialReader.Begin skip over chunks whose id
// does not match, using their recorded length, instead of failing.
func SkipUnknownChunks(enable bool) Option {
	return func(o *Options) {
		o.SkipUnknownChunks = enable
	}
}

// UseDirectoryPadding sets the number of zero bytes written between the last
// chunk and the directory on Finalize.
func UseDirectoryPadding(p uint64) Option {
	return func(o *Options) {
		o.DirectoryPadding = p
	}
}

// UseChunkAlignment makes the writer pad with zero bytes so that every chunk
// payload starts at a multiple of n bytes from the start of the container.
// Zero or one disables alignment.
func UseChunkAlignment(n uint64) Option {
	return func(o *Options) {
		o.ChunkAlignment = n
	}
}

// UseMetricsContext sets the context whose metrics scope receives the
// counters of a reader or writer.
func UseMetricsContext(ctx context.Context) Option {
	return func(o *Options) {
		o.MetricsContext = ctx
	}
}
