package main

import (
	"os"

	"github.com/Aygren/balendip-sub000/internal/testevents"
)

func main() {
	if err := testevents.NewCommand(testevents.Run).Execute(); err != nil {
		os.Exit(1)
	}
}
