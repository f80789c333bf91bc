package main

import "github.com/streetlabs/bobwire/cmd"

func main() {
	cmd.Execute()
}
