package main

import (
	"log"
	"os"

	logging "github.com/ipfs/go-log/v2"
	"github.com/urfave/cli/v2"

	"github.com/ipfs/go-chunkfile"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "chunkfile",
		Usage: "Utility for working with chunked container files",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "app",
				Usage:   "Application id, as an 8 character name, to tag new containers with and to require when reading",
				EnvVars: []string{"CHUNKFILE_APP"},
			},
			&cli.StringFlag{
				Name:  "variant",
				Usage: "Container layout: directory or sequential",
				Value: chunkfile.VariantDirectory.String(),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level of the chunkfile subsystem, overriding GOLOG_LOG_LEVEL",
				EnvVars: []string{"CHUNKFILE_LOG_LEVEL"},
			},
		},
		Before: func(c *cli.Context) error {
			if !c.IsSet("log-level") {
				return nil
			}
			return logging.SetLogLevel("chunkfile", c.String("log-level"))
		},
		Commands: []*cli.Command{
			{
				Name:    "list",
				Aliases: []string{"ls", "l"},
				Usage:   "List the chunks in a container",
				Action:  ListChunks,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "hash",
						Usage: "Print the xxhash of every payload",
					},
					&cli.BoolFlag{
						Name:  "type",
						Usage: "Print the detected content type of every payload",
					},
				},
			},
			{
				Name:      "cat",
				Usage:     "Write the payload of a chunk to stdout or a file",
				ArgsUsage: "<container> <chunk> [output]",
				Action:    CatChunk,
			},
			{
				Name:      "extract",
				Aliases:   []string{"x"},
				Usage:     "Write every chunk payload to its own file in a directory",
				ArgsUsage: "<container> <directory>",
				Action:    ExtractChunks,
			},
			{
				Name:      "pack",
				Aliases:   []string{"p"},
				Usage:     "Create a container from files",
				ArgsUsage: "<container> <chunk>=<file>...",
				Action:    PackChunks,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "align",
						Usage: "Align every payload to a multiple of this size, such as 4KiB",
						Value: "0",
					},
					&cli.StringFlag{
						Name:  "padding",
						Usage: "Zero bytes to leave in front of the directory, such as 1MiB",
						Value: "0",
					},
				},
			},
			{
				Name:      "probe",
				Usage:     "Report which files are containers",
				ArgsUsage: "<file>...",
				Action:    ProbeFiles,
			},
			{
				Name:      "inspect",
				Usage:     "Print a report about the structure of a container",
				ArgsUsage: "<container>",
				Action:    InspectContainer,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "verify",
						Usage: "Check the marker of every chunk against the directory",
					},
				},
			},
		},
	}
}
