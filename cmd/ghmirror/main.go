package main

import (
	"os"

	"github.com/dl-alexandre/ghmirror/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
