package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/gogpu/texcomp"
)

func (a *app) formatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List formats, encoders, pipelines and containers",
		Args:  cobra.NoArgs,
		Run: func(*cobra.Command, []string) {
			reg := a.fw.Registry()

			a.printf("Formats:\n")
			for _, f := range texcomp.Formats() {
				encoder := ""
				if reg.Has(texcomp.CategoryEncoder, f.String()) {
					encoder = "encoder"
				}
				size, unit := f.BytesPerPixel(), "pixel"
				if f.IsCompressed() {
					size, unit = f.BytesPerBlock(), "block"
				}
				a.printf("  %-9s %2d bytes/%-5s %s\n", f, size, unit, encoder)
			}

			a.printf("Pipelines: %s\n", strings.Join(reg.Available(texcomp.CategoryPipeline), ", "))
			if best := reg.PreferredPipeline(); best != "" {
				a.printf("Preferred: %s\n", best)
			}
			a.printf("Containers: %s\n", strings.Join(reg.Available(texcomp.CategoryImage), ", "))
		},
	}
}
