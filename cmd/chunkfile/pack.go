package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/ipfs/go-chunkfile"
	"github.com/ipfs/go-chunkfile/chunkid"
)

type chunkSource struct {
	id   chunkid.ID
	path string
}

func parseChunkSources(args []string) ([]chunkSource, error) {
	sources := make([]chunkSource, 0, len(args))
	for _, arg := range args {
		name, path, ok := strings.Cut(arg, "=")
		if !ok || path == "" {
			return nil, fmt.Errorf("expected <chunk>=<file>, got %q", arg)
		}
		id, err := chunkid.Encode(name)
		if err != nil {
			return nil, err
		}
		if err := chunkid.Validate(id); err != nil {
			return nil, fmt.Errorf("chunk %q: %w", name, err)
		}
		sources = append(sources, chunkSource{id: id, path: path})
	}
	return sources, nil
}

// PackChunks is a command to create a container holding the given files, each
// as the payload of the named chunk, in argument order.
func PackChunks(c *cli.Context) (err error) {
	if c.Args().Len() < 1 {
		return fmt.Errorf("must provide a container to write")
	}
	app, err := appID(c)
	if err != nil {
		return err
	}
	v, err := variant(c)
	if err != nil {
		return err
	}
	sources, err := parseChunkSources(c.Args().Tail())
	if err != nil {
		return err
	}
	align, err := humanize.ParseBytes(c.String("align"))
	if err != nil {
		return fmt.Errorf("invalid --align: %w", err)
	}
	padding, err := humanize.ParseBytes(c.String("padding"))
	if err != nil {
		return fmt.Errorf("invalid --padding: %w", err)
	}
	ids := lo.Map(sources, func(s chunkSource, _ int) chunkid.ID { return s.id })
	if dups := lo.FindDuplicates(ids); len(dups) > 0 && v == chunkfile.VariantDirectory {
		fmt.Fprintf(c.App.ErrWriter, "warning: only the last of each repeated chunk will be readable: %v\n", dups)
	}

	f, err := os.Create(c.Args().First())
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, f.Close()) }()

	w, err := chunkfile.NewChunkWriter(f, v, app,
		chunkfile.UseChunkAlignment(align),
		chunkfile.UseDirectoryPadding(padding),
	)
	if err != nil {
		return err
	}
	for _, s := range sources {
		if err := packFile(w, s); err != nil {
			return err
		}
	}
	size, err := w.Finalize()
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.ErrWriter, "packed %d chunks into %s (%s)\n", len(sources), c.Args().First(), humanize.Bytes(uint64(size)))
	return nil
}

func packFile(w chunkfile.ChunkWriter, s chunkSource) (err error) {
	in, err := os.Open(s.path)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, in.Close()) }()
	ch, err := w.OpenChunk(s.id)
	if err != nil {
		return err
	}
	if _, err := copyPayload(ch, in); err != nil {
		return fmt.Errorf("packing %s as %s: %w", s.path, s.id, err)
	}
	return w.CloseChunk()
}
