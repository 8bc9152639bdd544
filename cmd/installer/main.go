package main

import (
	"fmt"
	"os"

	"github.com/tnqbao/gau-plugin-installer/cmd/installer/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
