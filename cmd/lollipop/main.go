package main

import "github.com/variant-lollipop-server/internal/cli"

func main() {
	cli.Execute()
}
