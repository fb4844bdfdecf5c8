package main

import "github.com/montiglio/graphbench/cmd"

func main() {
	cmd.Execute()
}
