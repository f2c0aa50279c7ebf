package main

import (
	"go.brendoncarroll.net/star"

	"aeterna.dev/aeterna/aetcmd"
)

func main() {
	star.Main(aetcmd.Root())
}
