package main

import "github.com/encodeous/gsqr/cmd"

func main() {
	cmd.Execute()
}
