package main

import (
	"github.com/spatialdb/spatialdb/cmd/spatialdb/cmd"
)

func main() {
	cmd.Execute()
}
