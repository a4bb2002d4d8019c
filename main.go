package main

import "github.com/kel85uk/opm-simulators/cmd"

func main() {
	cmd.Execute()
}
