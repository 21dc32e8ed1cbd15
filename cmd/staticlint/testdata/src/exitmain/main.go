package main

import (
	"fmt"
	sys "os"
)

func main() {
	fmt.Println("starting")

	defer func() {
		sys.Exit(0)
	}()

	if len(sys.Args) > 3 {
		sys.Exit(2) // want "direct call to os.Exit in main function"
	}
	run()
}

func run() {
	sys.Exit(1)
}
