package main

import "Athena/client/athena-cli/cmd"

func main() {
	cmd.Execute()
}
