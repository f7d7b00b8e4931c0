package main

import (
	"context"
	"os"

	"github.com/rustyeddy/killswitch/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background()))
}
