package main

import (
	"fmt"
	"os"

	"github.com/samber/lo"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/ipfs/go-chunkfile"
)

const probeConcurrency = 8

// ProbeFiles is a command to report, for every argument, whether the file
// starts with a container header. Only directory containers have a header, so
// sequential containers are never recognized.
func ProbeFiles(c *cli.Context) error {
	if c.Args().Len() < 1 {
		return fmt.Errorf("must provide at least one file to probe")
	}
	apps, err := acceptedApps(c)
	if err != nil {
		return err
	}

	paths := c.Args().Slice()
	found := make([]bool, len(paths))
	g, _ := errgroup.WithContext(c.Context)
	g.SetLimit(probeConcurrency)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			ok, err := probeFile(path, apps)
			found[i] = ok
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i, path := range paths {
		fmt.Fprintf(c.App.Writer, "%s\t%s\n", path, lo.Ternary(found[i], "container", "not a container"))
	}
	return nil
}

func probeFile(path string, apps []uint64) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()
	return chunkfile.Probe(f, apps...), nil
}
