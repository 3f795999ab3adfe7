package main

import (
	"log"

	"github.com/octopilot/certstore/internal/cmd"
)

func main() {
	log.SetFlags(0)
	if err := cmd.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}
