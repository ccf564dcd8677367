package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"appletcore/internal/version"
	"appletcore/pkg/domain"
)

type rootOptions struct {
	configPath  string
	userID      string
	metricsPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "appletctl",
		Short:         "Manage versioned applets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "appletcore.toml", "configuration file (missing file means defaults)")
	root.PersistentFlags().StringVar(&opts.userID, "user", "", "acting user id")
	root.PersistentFlags().StringVar(&opts.metricsPath, "metrics-out", "", "write Prometheus metrics to this file on exit")

	root.AddCommand(
		newCreateCmd(opts),
		newUpdateCmd(opts),
		newDeleteCmd(opts),
		newShowCmd(opts),
		newVersionsCmd(opts),
		newDiffCmd(opts),
		newReindexCmd(opts),
		newLinkEventCmd(opts),
		newUnlinkEventCmd(opts),
		newEventsCmd(opts),
	)
	return root
}

// withApp opens the stores for one invocation and closes them afterwards.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(context.Context, *app) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := openApp(ctx, opts.configPath, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, a.close(opts.metricsPath))
	}()
	return fn(ctx, a)
}

func requireUser(opts *rootOptions) (string, error) {
	if strings.TrimSpace(opts.userID) == "" {
		return "", usageError{msg: "--user is required"}
	}
	return opts.userID, nil
}

func printResult(cmd *cobra.Command, res domain.Result) {
	for _, v := range res.Violations {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s: %s\n", v.Rule, v.Message)
	}
}

func newCreateCmd(opts *rootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an applet from a YAML or JSON request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			owner, err := requireUser(opts)
			if err != nil {
				return err
			}
			req, err := readRequest(file, cmd.InOrStdin())
			if err != nil {
				return usageError{msg: err.Error()}
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				full, res, err := a.svc.CreateApplet(ctx, owner, req)
				if err != nil {
					return err
				}
				printResult(cmd, res)
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", full.ID, full.Version)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "request file, - for stdin")
	return cmd
}

func newUpdateCmd(opts *rootOptions) *cobra.Command {
	var (
		file     string
		bump     string
		expected string
	)
	cmd := &cobra.Command{
		Use:   "update <applet-id>",
		Short: "Replace an applet tree and record a new version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := requireUser(opts)
			if err != nil {
				return err
			}
			policy := version.Bump("")
			if bump != "" {
				if policy, err = version.ParseBump(bump); err != nil {
					return usageError{msg: err.Error()}
				}
			}
			req, err := readRequest(file, cmd.InOrStdin())
			if err != nil {
				return usageError{msg: err.Error()}
			}
			if expected != "" {
				req.ExpectedVersion = expected
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				full, res, err := a.svc.UpdateApplet(ctx, args[0], user, req, policy)
				if err != nil {
					return err
				}
				printResult(cmd, res)
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", full.ID, full.Version)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "request file, - for stdin")
	cmd.Flags().StringVar(&bump, "bump", "", "version bump: none, patch, minor or major (default from config)")
	cmd.Flags().StringVar(&expected, "expected-version", "", "fail unless the stored version matches")
	return cmd
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <applet-id>",
		Short: "Soft-delete an applet; its history is kept",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := requireUser(opts)
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				res, err := a.svc.DeleteApplet(ctx, args[0], user)
				printResult(cmd, res)
				return err
			})
		},
	}
}

func newShowCmd(opts *rootOptions) *cobra.Command {
	var (
		ver      string
		archived bool
	)
	cmd := &cobra.Command{
		Use:   "show <applet-id>",
		Short: "Print the current applet tree or a historical snapshot as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if archived && ver == "" {
				return usageError{msg: "--archived requires --version"}
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				switch {
				case archived:
					if a.archive == nil {
						return usageError{msg: "no blob archive configured"}
					}
					snap, err := a.archive.Load(ctx, args[0], ver)
					if err != nil {
						return err
					}
					return writeJSON(cmd.OutOrStdout(), snap)
				case ver != "":
					snap, err := a.svc.GetAppletAtVersion(ctx, args[0], ver)
					if err != nil {
						return err
					}
					return writeJSON(cmd.OutOrStdout(), snap)
				default:
					full, err := a.svc.GetApplet(ctx, args[0])
					if err != nil {
						return err
					}
					return writeJSON(cmd.OutOrStdout(), full)
				}
			})
		},
	}
	cmd.Flags().StringVar(&ver, "version", "", "historical version to show")
	cmd.Flags().BoolVar(&archived, "archived", false, "read the snapshot from the blob archive")
	return cmd
}

func newVersionsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "versions <applet-id>",
		Short: "List recorded versions, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				versions, err := a.svc.GetAppletVersions(ctx, args[0])
				if err != nil {
					return err
				}
				for _, v := range versions {
					fmt.Fprintln(cmd.OutOrStdout(), v)
				}
				return nil
			})
		},
	}
}

func newDiffCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "diff <applet-id> <from-version> <to-version>",
		Short: "Print the change log between two versions",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				cs, err := a.svc.Diff(ctx, args[0], args[1], args[2])
				if err != nil {
					return err
				}
				for _, line := range cs.Lines() {
					fmt.Fprintln(cmd.OutOrStdout(), line)
				}
				return nil
			})
		},
	}
}

func newReindexCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex <applet-id>",
		Short: "Renumber colliding option values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := requireUser(opts)
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				full, res, err := a.svc.ReindexOptionValues(ctx, args[0], user)
				if err != nil {
					return err
				}
				printResult(cmd, res)
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", full.ID, full.Version)
				return nil
			})
		},
	}
}

func newLinkEventCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "link-event <applet-id> <event-id-version>",
		Short: "Link a scheduler event to the current version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				res, err := a.svc.LinkEvent(ctx, args[0], args[1])
				printResult(cmd, res)
				return err
			})
		},
	}
}

func newUnlinkEventCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "unlink-event <applet-id> <event-id-version>",
		Short: "Unlink a scheduler event from the current version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				res, err := a.svc.UnlinkEvent(ctx, args[0], args[1])
				printResult(cmd, res)
				return err
			})
		},
	}
}

func newEventsCmd(opts *rootOptions) *cobra.Command {
	var ver string
	cmd := &cobra.Command{
		Use:   "events <applet-id>",
		Short: "List active event links of a version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				links, err := a.svc.ListEventLinks(ctx, args[0], ver)
				if err != nil {
					return err
				}
				for _, l := range links {
					fmt.Fprintln(cmd.OutOrStdout(), l.EventIDVersion)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&ver, "version", "", "applet version (default current)")
	return cmd
}
