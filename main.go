package main

import "github.com/sigscope/sigscope/cmd"

func main() {
	cmd.Execute()
}
