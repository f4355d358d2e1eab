// Package cli renders discovery results for terminal consumption.
//
// Three output formats are supported: a rich table for humans, and JSON or
// YAML for scripting. Rendering is side-effect free apart from writing to the
// configured writer, so commands stay trivially testable.
package cli
