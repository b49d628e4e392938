package main

import (
	"context"
	"os"
)

func main() {
	root := NewRootCmd()
	root.SetContext(context.Background())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
