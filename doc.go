// Package texcomp is a texture compression runtime.
//
// # Overview
//
// texcomp converts texture mip chains between pixel and block formats
// (BC1 through BC5, signed variants, and the uncompressed layouts) on
// interchangeable compute backends: a CPU block-parallel pipeline and GPU
// compute pipelines on Vulkan, OpenGL and DirectX 12. Backends, encoders
// and container codecs are plugins looked up by name in a Registry.
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/texcomp"
//	    _ "github.com/gogpu/texcomp/plugins"
//	)
//
//	src, err := texcomp.Load("albedo.png")
//	if err != nil { ... }
//	defer src.Free()
//
//	dst, err := texcomp.Convert(src, &texcomp.KernelOptions{
//	    Format:     texcomp.FormatBC1,
//	    EncodeWith: texcomp.BackendHPC,
//	    Quality:    1,
//	}, nil)
//	if err != nil { ... }
//	defer dst.Free()
//
//	err = texcomp.Save("albedo.dds", dst)
//	texcomp.Shutdown()
//
// # Architecture
//
//   - Registry: (category, name) to factory tables for Image, Encoder and
//     Pipeline plugins. Plugin packages register from init; RegisterHostPlugins
//     loads them once.
//   - MipSet: multi-level, multi-face storage with an active view naming the
//     level being processed.
//   - LifecycleManager: owns the active Encoder and Pipeline and rebuilds them
//     when the (backend, format) pair changes.
//   - Framework: serializes Convert over one LifecycleManager and dispatches
//     Load and Save by file extension.
//   - BlockEncoderHandle: single-block compression outside the pipeline.
//
// # Logging
//
// texcomp logs through log/slog and is silent by default. See SetLogger.
package texcomp

import "runtime"

// Version is the library version.
const Version = "0.1.0"

// NumberOfProcessors returns the number of logical CPUs usable by the
// HPC pipeline.
func NumberOfProcessors() int {
	return runtime.NumCPU()
}
