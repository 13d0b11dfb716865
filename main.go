// The main package for the linkharvest executable.
package main

import (
	"linkharvest/cmd"
)

func main() {
	cmd.Execute()
}
