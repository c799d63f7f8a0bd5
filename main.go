package main

import (
	"github.com/andy-ce-taylor/reslock/cmd"
)

func main() {
	cmd.Execute()
}
