// Package main is the entry point for the scriptor binary.
package main

import "scriptor/internal/cli"

func main() {
	cli.Execute()
}
