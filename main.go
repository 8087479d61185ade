// Command evaluatorctl compiles and deploys the Evaluator contract.
package main

import (
	"os"

	"github.com/filecoin-saturn/contracts/cmd"
)

func main() {
	os.Exit(cmd.Run(os.Args[1:], os.Stdout, os.Stderr))
}
