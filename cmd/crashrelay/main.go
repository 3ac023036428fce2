package main

import (
	"fmt"
	"os"

	"github.com/crashfeed/relay/cmd/crashrelay/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
