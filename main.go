// Entry point; CLI handling lives in the cobra commands of package cmd.
package main

import (
	"github.com/qos-sim/qos-sim/cmd"
)

func main() {
	cmd.Execute()
}
