package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "watsh %s (%s)\n", version, buildDate)
		},
	}
}

func signupCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "signup <email>",
		Short: "Create an account and save its token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := c.call(cmd, "CreateUser", map[string]any{"email": args[0]}, false)
			if err != nil {
				return err
			}
			if err := saveToken(c.v, c.dir, fmt.Sprint(resp["access_token"])); err != nil {
				return fmt.Errorf("save token: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), resp["user"])
		},
	}
}

func acceptCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "accept <invitation-token>",
		Short: "Join a project from an invitation and save the token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := c.call(cmd, "AcceptInvitation", map[string]any{"invitation_token": args[0]}, false)
			if err != nil {
				return err
			}
			if err := saveToken(c.v, c.dir, fmt.Sprint(resp["access_token"])); err != nil {
				return fmt.Errorf("save token: %w", err)
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"user": resp["user"], "project_id": resp["project_id"]})
		},
	}
}

func logoutCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved token",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return clearToken(c.v, c.dir)
		},
	}
}

func meCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the current user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := c.call(cmd, "GetMe", nil, true)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp["user"])
		},
	}
}

func callCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "call <method> [json | -]",
		Short: "Invoke any method with a JSON request",
		Long: `Call sends a JSON object as the request of method and prints the response.

Example:
  watsh call CreateProject '{"slug":"billing"}'
  echo '{"project_id":"..."}' | watsh call ListEnvironments -`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]any{}
			if len(args) == 2 {
				raw := []byte(args[1])
				if args[1] == "-" {
					var err error
					if raw, err = io.ReadAll(cmd.InOrStdin()); err != nil {
						return err
					}
				}
				if err := json.Unmarshal(raw, &req); err != nil {
					return fmt.Errorf("request must be a JSON object: %w", err)
				}
			}
			resp, err := c.call(cmd, args[0], req, true)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp)
		},
	}
}

// scopeFlags selects a branch and, optionally, a commit.
type scopeFlags struct {
	project, environment, branch, commit string
}

func (s *scopeFlags) bind(cmd *cobra.Command, withCommit bool) {
	f := cmd.Flags()
	f.StringVarP(&s.project, "project", "p", "", "project id")
	f.StringVarP(&s.environment, "env", "e", "", "environment id")
	f.StringVarP(&s.branch, "branch", "b", "", "branch id")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("env")
	_ = cmd.MarkFlagRequired("branch")
	if withCommit {
		f.StringVar(&s.commit, "commit", "", "read as of this commit")
	}
}

func (s *scopeFlags) request() map[string]any {
	req := map[string]any{
		"project_id":     s.project,
		"environment_id": s.environment,
		"branch_id":      s.branch,
	}
	if s.commit != "" {
		req["commit_id"] = s.commit
	}
	return req
}

func snapshotCmd(c *cli) *cobra.Command {
	var sf scopeFlags
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Print the configuration tree of a branch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := c.call(cmd, "GetSnapshot", sf.request(), true)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp["snapshot"])
		},
	}
	sf.bind(cmd, true)
	return cmd
}

func schemaCmd(c *cli) *cobra.Command {
	var sf scopeFlags
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of a branch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := c.call(cmd, "GetSchema", sf.request(), true)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp["schema"])
		},
	}
	sf.bind(cmd, true)
	return cmd
}

func importCmd(c *cli) *cobra.Command {
	var (
		sf      scopeFlags
		file    string
		message string
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: `Replace a branch tree from a {"schema": ..., "values": ...} document`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := readAll(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			var doc struct {
				Schema map[string]any `json:"schema"`
				Values map[string]any `json:"values"`
			}
			if err := json.Unmarshal(raw, &doc); err != nil {
				return fmt.Errorf("parse %s: %w", file, err)
			}
			if doc.Schema == nil || doc.Values == nil {
				return errors.New(`document needs "schema" and "values" objects`)
			}
			req := sf.request()
			req["schema"] = doc.Schema
			req["values"] = doc.Values
			req["message"] = message
			resp, err := c.call(cmd, "Import", req, true)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), resp["commit"])
		},
	}
	sf.bind(cmd, false)
	cmd.Flags().StringVarP(&file, "file", "f", "-", "document path, - for stdin")
	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	return cmd
}

func watchCmd(c *cli) *cobra.Command {
	var sf scopeFlags
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream the branch snapshot after every commit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cl, closeFn, err := c.client(ctx, true)
			if err != nil {
				return err
			}
			defer closeFn()

			stream, err := cl.Watch(ctx, sf.request())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for {
				frame, err := stream.Recv()
				if errors.Is(err, io.EOF) || ctx.Err() != nil {
					return nil
				}
				if err != nil {
					return err
				}
				if err := enc.Encode(frame); err != nil {
					return err
				}
			}
		},
	}
	sf.bind(cmd, false)
	return cmd
}
