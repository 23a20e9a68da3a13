package main

import "github.com/ogulcanaydogan/stocksync/internal/cli"

func main() {
	cli.Execute()
}
