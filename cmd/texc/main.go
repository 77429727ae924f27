// Command texc converts textures between pixel and block-compressed formats.
//
// Usage:
//
//	texc convert albedo.png albedo.dds --format BC1 --mips 1
//	texc info albedo.dds
//	texc formats
package main

import (
	"fmt"
	"io"
	"os"

	_ "github.com/gogpu/texcomp/plugins"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "texc:", err)
		os.Exit(1)
	}
}

// run executes the command line args and releases the framework it
// created, whether or not the command succeeded.
func run(args []string, stdout, stderr io.Writer) error {
	a := &app{stderr: stderr}
	cmd := a.rootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if a.fw != nil {
		if cerr := a.fw.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
