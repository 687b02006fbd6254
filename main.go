package main

import (
	"github.com/abe-nagisa/fmscan/cmd"
)

func main() {
	cmd.Execute()
}
