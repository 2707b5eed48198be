package main

import "github.com/momentics/copybench/cmd"

func main() {
	cmd.Execute()
}
