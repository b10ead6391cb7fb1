package main

import "sirenscope/cmd"

func main() {
	cmd.Execute()
}
