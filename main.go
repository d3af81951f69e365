package main

import "github.com/yimingwow/rayquote/cmd"

func main() {
	cmd.Execute()
}
