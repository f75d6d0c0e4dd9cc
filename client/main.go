package main

import "github.com/stashgrid/relay/client/cmd"

func main() {
	cmd.Execute()
}
