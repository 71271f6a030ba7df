package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/ipfs/go-chunkfile"
	"github.com/ipfs/go-chunkfile/chunkid"
)

// InspectContainer verifies a container and prints a basic report about its
// contents.
func InspectContainer(c *cli.Context) (err error) {
	if c.Args().Len() < 1 {
		return fmt.Errorf("must provide a container to inspect")
	}
	v, err := variant(c)
	if err != nil {
		return err
	}
	if v != chunkfile.VariantDirectory {
		return fmt.Errorf("inspect needs a %s container, not %s", chunkfile.VariantDirectory, v)
	}
	opts, err := readerOptions(c)
	if err != nil {
		return err
	}
	r, err := chunkfile.OpenReader(c.Args().First(), opts...)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, r.Close()) }()

	stats, err := r.Inspect(c.Bool("verify"))
	if err != nil {
		return err
	}
	h := stats.Header
	_, err = fmt.Fprintf(c.App.Writer, `App id: %s
File size: %s (%d bytes)
Directory offset: %d
Directory size: %d
Chunks: %d (%d unique)
Payload: %s (%d bytes)
Overhead: %d bytes
Min / avg / max chunk size: %d / %d / %d
`,
		chunkid.ID(h.AppID), humanize.Bytes(uint64(h.FileSize)), h.FileSize,
		h.DirectoryOffset,
		stats.DirectorySize,
		stats.ChunkCount, stats.UniqueChunks,
		humanize.Bytes(uint64(stats.PayloadBytes)), stats.PayloadBytes,
		stats.Overhead,
		stats.MinChunkSize, stats.AvgChunkSize, stats.MaxChunkSize)
	return err
}
