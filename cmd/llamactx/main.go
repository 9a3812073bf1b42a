package main

import (
	"os"

	"llamactx/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
