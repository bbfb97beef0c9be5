// comboboard plays sounds and changes the volume when a directional key
// combo is typed anywhere on the desktop.
package main

import (
	"context"
	"fmt"
	"os"
)

// Set by -ldflags at build time.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "comboboard:", err)
		os.Exit(1)
	}
}
