package main

import "github.com/datachat/datachat/cmd"

func main() {
	cmd.Execute()
}
