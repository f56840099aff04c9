package main

import (
	"log"

	"bookvault/cmd/bv/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		log.Fatal(err)
	}
}
