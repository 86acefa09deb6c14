package main

import "github.com/vidnote/vidnote/internal/cli"

func main() {
	cli.Main()
}
