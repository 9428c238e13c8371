package main

import (
	"os"

	"modm/pkg/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
