package main

import "github.com/gravitas-games/foundry/internal/cli"

func main() {
	cli.Execute()
}
