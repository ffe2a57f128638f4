package main

import "meetindex/cmd"

func main() {
	cmd.Execute()
}
