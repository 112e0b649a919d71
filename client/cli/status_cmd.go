package cli

import (
	"context"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	cerrors "github.com/rayos/conductor/common/errors"
	"github.com/rayos/conductor/domain"
)

type statusCmd struct{}

func (c *statusCmd) RegisterFlags() *cobra.Command {
	return &cobra.Command{
		Use:   "status TASK_ID",
		Short: "Print the status of a task",
	}
}

func (c *statusCmd) Run(cl *SimpleClient, cmd *cobra.Command, args []string) error {
	if len(args) != 1 {
		return cerrors.NewError(errors.New("a task id must be provided"), cerrors.UsageExitCode)
	}
	id, err := domain.ParseTaskID(args[0])
	if err != nil {
		return cerrors.NewError(err, cerrors.UsageExitCode)
	}
	st, err := cl.Client.Status(context.Background(), id)
	if err != nil {
		return clientError(err, "status")
	}
	cl.printf("%s: %s\n", id, st)
	return nil
}
