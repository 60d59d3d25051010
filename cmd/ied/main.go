package main

import "github.com/ied-systems/ied/internal/cli"

func main() {
	cli.Execute()
}
