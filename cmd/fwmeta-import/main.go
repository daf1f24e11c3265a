package main

import "github.com/oshokin/fwmeta/cmd/fwmeta-import/cmd"

func main() {
	cmd.Execute()
}
