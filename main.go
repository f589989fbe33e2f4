package main

import "lkml/mergetrace/cmd"

func main() {
	cmd.Execute()
}
