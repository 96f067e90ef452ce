package main

import "github.com/tracelab/strand/cmd/strandview/cmd"

func main() {
	cmd.Execute()
}
