package main

import (
	"os"

	"github.com/dshills/prsignal/internal/cli"
)

func main() {
	os.Exit(cli.Run())
}
