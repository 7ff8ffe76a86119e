package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/balkashynov/tasktime/internal/auth"
	"github.com/balkashynov/tasktime/internal/db"
)

var tokenCmd = &cobra.Command{
	Use:   "token [user-id]",
	Short: "Issue a bearer token for a user",
	Long: `Issue a signed bearer token for a user. The server must be configured
with the same auth.jwt_secret.

Examples:
  tasktime token alice`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := auth.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL).Issue(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage task ownership on the server database",
}

var taskAddCmd = &cobra.Command{
	Use:   "add [task-id]",
	Short: "Register a task with its owner, assignee and organization",
	Long: `Register a task so the server can decide who may see it.

Examples:
  tasktime task add T-42 --owner alice
  tasktime task add T-43 --owner alice --assignee bob --org acme`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, _ := cmd.Flags().GetString("owner")
		assignee, _ := cmd.Flags().GetString("assignee")
		org, _ := cmd.Flags().GetString("org")

		return withRegistry(cmd.Context(), func(ctx context.Context, reg *db.TaskRegistry) error {
			task, err := reg.CreateTask(ctx, db.CreateTaskRequest{
				ID:             args[0],
				OwnerID:        owner,
				AssigneeID:     assignee,
				OrganizationID: org,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task %s registered (owner %s)\n", task.ID, task.OwnerID)
			return nil
		})
	},
}

var orgCmd = &cobra.Command{
	Use:   "org",
	Short: "Manage organization membership on the server database",
}

var orgJoinCmd = &cobra.Command{
	Use:   "join [org-id] [user-id]",
	Short: "Add a user to an organization",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRegistry(cmd.Context(), func(ctx context.Context, reg *db.TaskRegistry) error {
			if err := reg.AddMember(ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is a member of %s\n", args[1], args[0])
			return nil
		})
	},
}

func init() {
	taskAddCmd.Flags().String("owner", "", "user who owns the task (required)")
	taskAddCmd.Flags().String("assignee", "", "user the task is assigned to")
	taskAddCmd.Flags().String("org", "", "organization the task belongs to")
	_ = taskAddCmd.MarkFlagRequired("owner")

	taskCmd.AddCommand(taskAddCmd)
	orgCmd.AddCommand(orgJoinCmd)
}

// withRegistry opens the server database for the duration of fn.
func withRegistry(ctx context.Context, fn func(context.Context, *db.TaskRegistry) error) error {
	conn, err := db.OpenServer(cfg.Database.Path, db.Options{})
	if err != nil {
		return fmt.Errorf("open server database: %w", err)
	}
	defer func() { _ = db.Close(conn) }()

	return fn(ctx, db.NewTaskRegistry(conn))
}
