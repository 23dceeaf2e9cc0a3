package main

import (
	"io"
	"os"

	sipwatchcmd "github.com/sipwatch/sipwatch/pkg/cmd"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

// run executes the command line and returns the process exit code. Only a
// failed run or a usage error exits non-zero.
func run(args []string, stdout io.Writer) int {
	cfg := sipwatchcmd.DefaultConfig()
	cfg.OutputWriter = stdout
	root := sipwatchcmd.NewRootCommand(cfg)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		return 1
	}
	return 0
}
