package main

import (
	"fmt"
	"io"
	"os"

	pool "github.com/libp2p/go-buffer-pool"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/ipfs/go-chunkfile"
	"github.com/ipfs/go-chunkfile/bounded"
	"github.com/ipfs/go-chunkfile/chunkid"
)

// defaultApp tags containers packed without --app.
const defaultApp = "CHNKTOOL"

const copyBufferSize = 64 << 10

func appID(c *cli.Context) (uint64, error) {
	name := c.String("app")
	if name == "" {
		name = defaultApp
	}
	id, err := chunkid.Encode(name)
	if err != nil {
		return 0, fmt.Errorf("invalid --app: %w", err)
	}
	return uint64(id), nil
}

func variant(c *cli.Context) (chunkfile.Variant, error) {
	return chunkfile.ParseVariant(c.String("variant"))
}

// acceptedApps returns the app ids readers should accept: the one named by
// --app, or any when it is not set.
func acceptedApps(c *cli.Context) ([]uint64, error) {
	if !c.IsSet("app") {
		return nil, nil
	}
	id, err := appID(c)
	if err != nil {
		return nil, err
	}
	return []uint64{id}, nil
}

func readerOptions(c *cli.Context, extra ...chunkfile.Option) ([]chunkfile.Option, error) {
	apps, err := acceptedApps(c)
	if err != nil {
		return nil, err
	}
	return append([]chunkfile.Option{chunkfile.AcceptAppIDs(apps...)}, extra...), nil
}

func copyPayload(dst io.Writer, src io.Reader) (int64, error) {
	buf := pool.Get(copyBufferSize)
	defer pool.Put(buf)
	return io.CopyBuffer(dst, src, buf)
}

// entry describes one chunk visited by walkChunks.
type entry struct {
	ID   chunkid.ID
	Size int64
	// Offset is the payload offset recorded in the directory, or -1 for
	// sequential containers.
	Offset int64
	// Shadowed is set on directory entries hidden by a later chunk with the
	// same id.
	Shadowed bool
}

// walkChunks calls fn for every chunk of the container at path, in file
// order, with a channel over its payload. Shadowed entries get a nil channel.
func walkChunks(c *cli.Context, path string, fn func(entry, *bounded.Channel) error) (err error) {
	v, err := variant(c)
	if err != nil {
		return err
	}
	opts, err := readerOptions(c)
	if err != nil {
		return err
	}
	if v == chunkfile.VariantSequential {
		return walkSequential(path, opts, fn)
	}

	r, err := chunkfile.OpenReader(path, opts...)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, r.Close()) }()
	chunks := r.Chunks()
	last := make(map[chunkid.ID]int, len(chunks))
	for i, ch := range chunks {
		last[ch.ID] = i
	}
	for i, ch := range chunks {
		e := entry{ID: ch.ID, Size: int64(ch.Size), Offset: int64(ch.Offset)}
		if last[ch.ID] != i {
			e.Shadowed = true
			if err := fn(e, nil); err != nil {
				return err
			}
			continue
		}
		payload, err := r.OpenChunk(ch.ID)
		if err != nil {
			return err
		}
		if err := fn(e, payload); err != nil {
			return multierr.Append(err, r.CloseChunk())
		}
		if err := r.CloseChunk(); err != nil {
			return err
		}
	}
	return nil
}

func walkSequential(path string, opts []chunkfile.Option, fn func(entry, *bounded.Channel) error) (err error) {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, f.Close()) }()
	r, err := chunkfile.NewSequentialReader(f, opts...)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, r.Close()) }()
	for {
		id, payload, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(entry{ID: id, Size: payload.Len(), Offset: -1}, payload); err != nil {
			return err
		}
		if err := r.CloseChunk(); err != nil {
			return err
		}
	}
}

// openChunk opens the chunk id of the container at path with the reader of
// the selected variant. Sequential containers are searched from the start.
// The returned func releases the reader and the file.
func openChunk(c *cli.Context, path string, id chunkid.ID) (*bounded.Channel, func() error, error) {
	v, err := variant(c)
	if err != nil {
		return nil, nil, err
	}
	opts, err := readerOptions(c, chunkfile.SkipUnknownChunks(true))
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	r, err := chunkfile.NewChunkReader(f, v, opts...)
	if err != nil {
		return nil, nil, multierr.Append(err, f.Close())
	}
	release := func() error {
		return multierr.Append(r.Close(), f.Close())
	}
	ch, err := r.OpenChunk(id)
	if err != nil {
		return nil, nil, multierr.Append(err, release())
	}
	return ch, release, nil
}
