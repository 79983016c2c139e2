package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/danmuck/framewire/internal/endpoint"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		report(os.Stderr, err)
		os.Exit(1)
	}
}

// report prints err and, for setup failures, the operator hint.
func report(w io.Writer, err error) {
	fmt.Fprintf(w, "framewire: %v\n", err)
	var setup *endpoint.SetupError
	if errors.As(err, &setup) {
		fmt.Fprintf(w, "hint: %s\n", setup.Hint())
	}
}
