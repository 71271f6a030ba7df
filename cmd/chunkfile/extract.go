package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/ipfs/go-chunkfile/bounded"
	"github.com/ipfs/go-chunkfile/chunkid"
)

// CatChunk is a command to write the payload of one chunk to stdout, or to a
// file when a third argument is given.
func CatChunk(c *cli.Context) (err error) {
	if c.Args().Len() < 2 {
		return fmt.Errorf("must provide a container and a chunk name")
	}
	id, err := chunkid.Encode(c.Args().Get(1))
	if err != nil {
		return err
	}

	out := c.App.Writer
	if c.Args().Len() >= 3 {
		f, cerr := os.Create(c.Args().Get(2))
		if cerr != nil {
			return cerr
		}
		defer func() { err = multierr.Append(err, f.Close()) }()
		out = f
	}

	payload, release, err := openChunk(c, c.Args().First(), id)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, release()) }()
	_, err = copyPayload(out, payload)
	return err
}

// ExtractChunks is a command to write every chunk payload of a container to
// its own file. Files are named after the chunk; repeated chunks of a
// sequential container get a numeric suffix.
func ExtractChunks(c *cli.Context) error {
	if c.Args().Len() < 2 {
		return fmt.Errorf("must provide a container and an output directory")
	}
	dir := c.Args().Get(1)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	seen := make(map[chunkid.ID]int)
	var count int
	err := walkChunks(c, c.Args().First(), func(e entry, payload *bounded.Channel) error {
		if e.Shadowed {
			return nil
		}
		name := fileName(e.ID)
		if n := seen[e.ID]; n > 0 {
			name = fmt.Sprintf("%s.%d", name, n)
		}
		seen[e.ID]++
		count++
		return writeFile(filepath.Join(dir, name+".bin"), payload)
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.ErrWriter, "extracted %d chunks to %s\n", count, dir)
	return nil
}

// fileName turns a chunk name into something safe to use as a file name.
func fileName(id chunkid.ID) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ', '.':
			return '_'
		}
		return r
	}, id.Name())
}

func writeFile(path string, r io.Reader) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, f.Close()) }()
	_, err = copyPayload(f, r)
	return err
}
