package main

import (
	"github.com/robotalks/motorlink/pkg/cli/sh"
	"github.com/robotalks/motorlink/pkg/env"

	_ "github.com/robotalks/motorlink/pkg/cli/cmds/motor"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupFlags()
}

func main() {
	sh.Main()
}
