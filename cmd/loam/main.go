package main

import "github.com/loamdb/loam/internal/cli"

func main() {
	cli.Execute()
}
