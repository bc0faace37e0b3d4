package main

import (
	"fmt"
	"os"

	"github.com/bobmcallan/portwatch/internal/app"
)

func main() {
	if err := newRootCmd(app.NewApp).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
