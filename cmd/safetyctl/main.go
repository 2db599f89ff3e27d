package main

import (
	"os"

	"github.com/notifyhub/safety-dispatch/cmd/safetyctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
