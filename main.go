package main

import "github.com/flagger-go/covhmm/cmd"

func main() {
	cmd.Execute()
}
