package main

import "github.com/callact/kbmigrate/cmd"

func main() {
	cmd.Execute()
}
