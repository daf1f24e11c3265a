package main

import "github.com/oshokin/fwmeta/cmd/fwmeta-server/cmd"

func main() {
	cmd.Execute()
}
