package main

import "papertrade/internal/cli"

func main() {
	cli.Execute()
}
