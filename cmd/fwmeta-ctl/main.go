package main

import "github.com/oshokin/fwmeta/cmd/fwmeta-ctl/cmd"

func main() {
	cmd.Execute()
}
