package main

import "senior-connect/cmd/senior-connect/cmd"

func main() {
	cmd.Execute()
}
