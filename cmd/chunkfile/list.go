package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cespare/xxhash"
	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/urfave/cli/v2"

	"github.com/ipfs/go-chunkfile/bounded"
)

// ListChunks is a command to output the chunks in a container, one per line:
// name, size and payload offset, optionally followed by the detected content
// type and the xxhash of the payload.
func ListChunks(c *cli.Context) error {
	if c.Args().Len() < 1 {
		return fmt.Errorf("must provide a container to list")
	}
	out := c.App.Writer
	return walkChunks(c, c.Args().First(), func(e entry, payload *bounded.Channel) error {
		offset := "-"
		if e.Offset >= 0 {
			offset = strconv.FormatInt(e.Offset, 10)
		}
		cols := []string{e.ID.Name(), humanize.Bytes(uint64(e.Size)), offset}
		if e.Shadowed {
			cols = append(cols, "(shadowed)")
		} else {
			if c.Bool("type") {
				mt, err := mimetype.DetectReader(payload)
				if err != nil {
					return err
				}
				cols = append(cols, mt.String())
				if _, err := payload.Seek(0, io.SeekStart); err != nil {
					return err
				}
			}
			if c.Bool("hash") {
				h := xxhash.New()
				if _, err := copyPayload(h, payload); err != nil {
					return err
				}
				cols = append(cols, fmt.Sprintf("%016x", h.Sum64()))
			}
		}
		_, err := fmt.Fprintln(out, strings.Join(cols, "\t"))
		return err
	})
}
