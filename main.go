package main

import (
	"github.com/mono/maccore/cmd"
)

var version = "v0.1.0"

func main() {
	cmd.Execute(version)
}
