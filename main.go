package main

import (
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/kvesta/vigil/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}
}
