// Package plugins registers every plugin shipped with texcomp.
//
// Import it for side effects:
//
//	import _ "github.com/gogpu/texcomp/plugins"
package plugins

import (
	// BCn encoders.
	_ "github.com/gogpu/texcomp/codec/bcn"

	// DDS container.
	_ "github.com/gogpu/texcomp/imageio/dds"

	// Compute pipelines.
	_ "github.com/gogpu/texcomp/pipeline/gpu"
	_ "github.com/gogpu/texcomp/pipeline/hpc"
)
