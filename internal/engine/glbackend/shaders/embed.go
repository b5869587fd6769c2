// Package shaders provides embedded GLSL shader sources.
package shaders

import _ "embed"

// MeshVertexShader transforms mesh vertices and rotates texture coordinates.
//
//go:embed mesh.vert
var MeshVertexShader string

// MeshFragmentShader samples the color texture.
//
//go:embed mesh.frag
var MeshFragmentShader string
