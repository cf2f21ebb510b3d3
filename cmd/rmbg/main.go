// Command rmbg removes image backgrounds locally with a neural segmentation
// model. It runs as a one-shot CLI ("rmbg remove") or as an MCP server over
// stdio ("rmbg serve").
package main

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	Execute()
}
