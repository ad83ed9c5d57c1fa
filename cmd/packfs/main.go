// Command packfs creates, inspects, and edits packed-file archives.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "packfs:", err)
		os.Exit(1)
	}
}
