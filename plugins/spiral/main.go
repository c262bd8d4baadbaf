// Command spiral is a blockcad plugin that builds a spiral staircase.
//
// Build it with:
//
//	go build -buildmode=plugin -o spiral.so ./plugins/spiral
package main

import (
	"github.com/hpungsan/blockcad/internal/generators"
	"github.com/hpungsan/blockcad/sdk"
)

// RunPlugin is the entry point resolved by the host.
func RunPlugin(scene *[]sdk.Block, host sdk.Host) {
	generators.Spiral(scene, host)
}

func main() {}
