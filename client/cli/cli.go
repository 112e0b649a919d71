// Package cli implements the conductor command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rayos/conductor/client"
	cerrors "github.com/rayos/conductor/common/errors"
)

const DefaultAddr = "localhost:9091"

// CLIClient is the root of the command tree.
type CLIClient interface {
	Exec() error
}

// SimpleClient holds the state shared by every command.
type SimpleClient struct {
	RootCmd  *cobra.Command
	Addr     string
	LogLevel string
	Client   *client.Client
	Out      io.Writer
}

// Cmd is one subcommand.
type Cmd interface {
	RegisterFlags() *cobra.Command
	Run(cl *SimpleClient, cmd *cobra.Command, args []string) error
}

func (c *SimpleClient) Exec() error {
	return c.RootCmd.Execute()
}

func NewCLIClient() CLIClient {
	return newSimpleClient(os.Stdout)
}

func newSimpleClient(out io.Writer) *SimpleClient {
	c := &SimpleClient{Out: out}
	c.RootCmd = &cobra.Command{
		Use:               "conductor",
		Short:             "conductor runs and queries a work-stealing task orchestrator",
		PersistentPreRunE: c.Init,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}
	c.RootCmd.PersistentFlags().StringVar(&c.Addr, "addr", DefaultAddr, "Conductor HTTP address")
	c.RootCmd.PersistentFlags().StringVar(&c.LogLevel, "log_level", "info", "Log everything at this level and above (error|info|debug)")

	c.addCmd(&serveCmd{})
	c.addCmd(&submitCmd{})
	c.addCmd(&statusCmd{})
	c.addCmd(&statsCmd{})
	c.addCmd(&loadCmd{})
	c.addCmd(&activityCmd{})
	c.addCmd(&benchCmd{})
	return c
}

// Can only be called from cobra command run or hook
func (c *SimpleClient) Init(cmd *cobra.Command, args []string) error {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return cerrors.NewError(err, cerrors.UsageExitCode)
	}
	log.SetLevel(level)
	c.Client = client.New(c.Addr)
	return nil
}

func (c *SimpleClient) addCmd(cmd Cmd) {
	cobraCmd := cmd.RegisterFlags()
	cobraCmd.RunE = func(innerCmd *cobra.Command, args []string) error {
		return cmd.Run(c, innerCmd, args)
	}
	c.RootCmd.AddCommand(cobraCmd)
}

func (c *SimpleClient) printJSON(v interface{}) error {
	enc := json.NewEncoder(c.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (c *SimpleClient) printf(format string, args ...interface{}) {
	fmt.Fprintf(c.Out, format, args...)
}

// clientError maps a client failure to the exit code the shell sees.
func clientError(err error, what string) error {
	if err == nil {
		return nil
	}
	wrapped := errors.Wrap(err, what)
	switch {
	case client.IsStatus(err, http.StatusNotFound):
		return cerrors.NewError(wrapped, cerrors.NotFoundExitCode)
	case client.IsStatus(err, http.StatusServiceUnavailable), client.IsStatus(err, http.StatusTooManyRequests):
		return cerrors.NewError(wrapped, cerrors.CapacityExitCode)
	case client.IsStatus(err, http.StatusBadRequest):
		return cerrors.NewError(wrapped, cerrors.UsageExitCode)
	}
	if _, ok := errors.Cause(err).(*client.StatusError); ok {
		return cerrors.NewError(wrapped, cerrors.GenericFailureExitCode)
	}
	return cerrors.NewError(wrapped, cerrors.ConnectFailureExitCode)
}
