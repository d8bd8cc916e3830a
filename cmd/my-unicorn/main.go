package main

import (
	"os"

	"github.com/Cyber-Syntax/my-unicorn-sub006/cmd"
)

func main() {
	err := cmd.Execute()
	os.Exit(cmd.ExitCode(err))
}
