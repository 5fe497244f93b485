package main

import "github.com/quantfold/tradewire/cmd/tradewire/cmd"

func main() {
	cmd.Execute()
}
