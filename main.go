package main

import "github.com/jsphweid/levelup/cmd"

func main() {
	cmd.Execute()
}
