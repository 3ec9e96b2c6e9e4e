package main

import "github.com/valpere/tilemani/cmd"

func main() {
	cmd.Execute()
}
