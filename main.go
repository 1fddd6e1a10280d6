package main

import "github.com/KaramelBytes/gdpscope-cli/cmd"

func main() {
	cmd.Execute()
}
