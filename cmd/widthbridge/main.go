package main

import "github.com/sarchlab/widthbridge/cmd/widthbridge/cmd"

func main() {
	cmd.Execute()
}
