package main

import "github.com/KaramelBytes/biolearn-cli/cmd"

func main() {
	cmd.Execute()
}
