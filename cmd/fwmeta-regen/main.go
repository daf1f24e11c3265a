package main

import "github.com/oshokin/fwmeta/cmd/fwmeta-regen/cmd"

func main() {
	cmd.Execute()
}
