package main

import (
	"os"

	"civicgrid.dev/grievdedup/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
