package shaders

import (
	_ "embed"
)

//go:embed trace.wgsl
var TraceWGSL string

//go:embed fullscreen.wgsl
var FullscreenWGSL string

//go:embed text.wgsl
var TextWGSL string
