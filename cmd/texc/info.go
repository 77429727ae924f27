package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gogpu/texcomp"
)

func (a *app) infoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "info <file>",
		Short: "Describe the mip chain of a texture file",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ms, err := a.fw.Load(args[0])
			if err != nil {
				return fmt.Errorf("load %s: %w", args[0], err)
			}
			defer ms.Free()
			a.printInfo(args[0], ms)
			return nil
		},
	}
}

func (a *app) printInfo(path string, ms *texcomp.MipSet) {
	a.printf("file:    %s\n", path)
	a.printf("format:  %s (%s)\n", ms.Format, ms.ChannelFormat)
	a.printf("type:    %s\n", ms.TextureType)
	a.printf("size:    %dx%d depth %d\n", ms.Width, ms.Height, ms.Depth)
	a.printf("levels:  %d of %d\n", ms.MipLevels, ms.MaxMipLevels)

	total := 0
	for mip := range ms.MipLevels {
		for face := range ms.MaxFacesOrSlices(mip) {
			lvl := ms.Level(mip, face)
			total += lvl.Size()
			a.printf("  mip %2d face %d  %5dx%-5d %10d bytes  xxh64 %016x\n",
				mip, face, lvl.Width, lvl.Height, lvl.Size(), lvl.Checksum())
		}
	}
	a.printf("total:   %d bytes\n", total)
}
