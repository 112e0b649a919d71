package main

import (
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/rayos/conductor/client/cli"
	cerrors "github.com/rayos/conductor/common/errors"
)

// conductor serves the orchestrator or talks to a running one.
func main() {
	if err := cli.NewCLIClient().Exec(); err != nil {
		log.Errorf("conductor: %v", err)
		os.Exit(int(cerrors.ExitCodeOf(err)))
	}
}
