package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/subcommands"

	"github.com/eak1mov/go-anviltiles/anvil"
	"github.com/eak1mov/go-anviltiles/chunk"
	"github.com/eak1mov/go-anviltiles/nbt"
)

type inspectCmd struct {
	inputPath string
	slot      int
	dump      bool
}

func (c *inspectCmd) Name() string     { return "inspect" }
func (c *inspectCmd) Synopsis() string { return "summarize a region file or dump one chunk" }
func (c *inspectCmd) Usage() string {
	return "anviltiles inspect -i <region file> [-chunk <slot> [-dump]]\n"
}

func (c *inspectCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.inputPath, "i", "", "Region file path")
	f.IntVar(&c.slot, "chunk", -1, "Chunk slot index 0..1023")
	f.BoolVar(&c.dump, "dump", false, "Dump the chunk's tagged tree instead of its summary")
}

func (c *inspectCmd) inspectRegion(region *anvil.Region) error {
	populated := region.Populated()
	fmt.Printf("region %v: %d of %d chunks\n", region.Pos(), populated.Count(), anvil.MaxChunks)

	return region.VisitChunks(func(i int, payload []byte) error {
		x, z := anvil.SlotPos(i)
		stamp := time.Unix(int64(region.Timestamp(i)), 0).UTC()
		fmt.Printf("slot %4d chunk (%2d,%2d)  %s  %6d bytes\n",
			i, x, z, stamp.Format(time.DateTime), len(payload))
		return nil
	})
}

func (c *inspectCmd) inspectChunk(region *anvil.Region) error {
	root, err := region.DecodeChunk(c.slot)
	if err != nil {
		return err
	}
	if c.dump {
		nbt.Dump(os.Stdout, "", root)
		return nil
	}

	parsed, err := chunk.Load(root)
	if err != nil {
		return err
	}
	fmt.Println(parsed)
	return nil
}

func (c *inspectCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	region, err := anvil.OpenFile(c.inputPath)
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}

	if c.slot < 0 {
		err = c.inspectRegion(region)
	} else {
		err = c.inspectChunk(region)
	}
	if err != nil {
		log.Println(err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
