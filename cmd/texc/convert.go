package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gogpu/texcomp"
)

type convertFlags struct {
	format  string
	backend string
	quality float32
	mips    int
	kernel  string
	stats   bool
}

func (a *app) convertCommand() *cobra.Command {
	var f convertFlags
	cmd := &cobra.Command{
		Use:   "convert <src> <dst>",
		Short: "Compress a texture and write it to a new file",
		Long: `convert loads src, optionally builds its mip chain, compresses every
level and face to the destination format, and saves the result. The
container is chosen by the extension of dst.`,
		Args: cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			return a.runConvert(args[0], args[1], &f)
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.format, "format", "f", "BC1", "destination format")
	fl.StringVarP(&f.backend, "encode-with", "e", "HPC", "compute backend (CPU, HPC, GPU, VLK, DXC)")
	fl.Float32VarP(&f.quality, "quality", "q", 0.05, "encode quality in 0..1")
	fl.IntVar(&f.mips, "mips", 0, "generate mip levels down to this size; 0 keeps the source levels")
	fl.StringVar(&f.kernel, "kernel", "", "kernel source file for GPU backends")
	fl.BoolVar(&f.stats, "stats", false, "print performance statistics")
	return cmd
}

func (a *app) runConvert(srcPath, dstPath string, f *convertFlags) error {
	format, err := texcomp.ParseFormat(f.format)
	if err != nil {
		return err
	}
	kind, err := texcomp.ParseBackendKind(f.backend)
	if err != nil {
		return err
	}

	src, err := a.fw.Load(srcPath)
	if err != nil {
		return fmt.Errorf("load %s: %w", srcPath, err)
	}
	defer src.Free()

	if f.mips > 0 && src.MipLevels == 1 {
		if err := texcomp.GenerateMipLevels(src, f.mips); err != nil {
			return err
		}
	}

	out := src
	if src.Format != format {
		opts := &texcomp.KernelOptions{
			Format:        format,
			EncodeWith:    kind,
			Quality:       f.quality,
			SourceFile:    f.kernel,
			GetPerfStats:  f.stats,
			GetDeviceInfo: f.stats,
		}
		var fb texcomp.Feedback
		if a.verbose {
			fb = func(progress float32) bool {
				fmt.Fprintf(a.stderr, "\r%s %3.0f%%", strings.ToLower(format.String()), progress)
				if progress >= 100 {
					fmt.Fprintln(a.stderr)
				}
				return false
			}
		}
		dst, err := a.fw.Convert(src, opts, fb)
		if err != nil {
			return fmt.Errorf("convert to %s on %s: %w", format, kind, err)
		}
		defer dst.Free()
		out = dst

		if f.stats {
			a.printStats(&opts.DeviceInfo, &opts.PerfStats)
		}
	}

	if err := a.fw.Save(dstPath, out); err != nil {
		return fmt.Errorf("save %s: %w", dstPath, err)
	}
	a.printf("%s: %s %dx%d, %d levels\n", dstPath, out.Format, out.Width, out.Height, out.MipLevels)
	return nil
}

func (a *app) printStats(d *texcomp.DeviceInfo, s *texcomp.PerformanceStats) {
	a.printf("device:     %s (%s, %d compute units)\n", d.Name, d.Backend, d.MaxComputeUnits)
	a.printf("blocks:     %d\n", s.NumBlocks)
	a.printf("compute:    %v\n", s.ComputeTime)
	a.printf("total:      %v\n", s.TotalTime)
	a.printf("throughput: %.2f MPixels/s\n", s.MPixelsPerSec)
}
