package main

import (
	"log"

	corecmd "github.com/connectcare/ussd/core/cmd"
)

func main() {
	if err := corecmd.Run(corecmd.Options{
		DefaultConfigPath: "config.yaml",
	}); err != nil {
		log.Fatalf("ussd: %v", err)
	}
}
