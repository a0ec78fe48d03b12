package main

import cmd "github.com/rohmanhakim/wayback-robots/internal/cli"

func main() {
	cmd.Execute()
}
