// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 avatar-switch Contributors

package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/vrcswitch/avatar-switch/internal/avatar"
	"github.com/vrcswitch/avatar-switch/internal/config"
	"github.com/vrcswitch/avatar-switch/internal/xdg"
)

// newListCmd creates the list subcommand.
func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the avatars names are matched against",
		Long: `List the avatars from the config file mapping, or your favorited avatars
when the mapping is empty. Listing favorites logs in first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.build()
			if err != nil {
				return err
			}
			return c.driver.List(cmd.Context(), a.credentials()) //nolint:wrapcheck // driver errors already carry codes
		},
	}
}

// newLogoutCmd creates the logout subcommand.
func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the saved session and delete the cookie file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.build()
			if err != nil {
				return err
			}
			found, err := c.auth.Logout(cmd.Context(), c.platform)
			if err != nil {
				return err //nolint:wrapcheck // platform errors already carry codes
			}
			if found {
				cmd.Println("Logged out.")
			} else {
				cmd.Println("No saved session.")
			}
			return nil
		},
	}
}

// newMapCmd creates the map subcommand group.
func newMapCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "map",
		Short: "Edit the avatar name mapping in the config file",
		Long: `Edit the avatars list in the config file. While the list has entries, names
are matched against it instead of your favorites.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "Show the mapped avatars",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := a.mappingFile()
			if err != nil {
				return err
			}
			avatars, err := m.List()
			if err != nil {
				return err //nolint:wrapcheck // config errors already carry codes
			}
			if len(avatars) == 0 {
				cmd.Printf("No avatars mapped in %s; favorites are used.\n", m.Path())
				return nil
			}
			cmd.Printf("Avatars in %s:\n", m.Path())
			return printAvatars(cmd, avatars)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add NAME AVATAR_ID",
		Short: "Map a name to an avatar id, replacing an entry with the same name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.mappingFile()
			if err != nil {
				return err
			}
			replaced, err := m.Set(args[0], args[1])
			if err != nil {
				return err //nolint:wrapcheck // config errors already carry codes
			}
			if err := m.Save(); err != nil {
				return err //nolint:wrapcheck // config errors already carry codes
			}
			verb := "Added"
			if replaced {
				verb = "Updated"
			}
			cmd.Printf("%s %s (%s) in %s.\n", verb, args[0], args[1], m.Path())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "remove NAME",
		Short: "Remove a mapped name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.mappingFile()
			if err != nil {
				return err
			}
			if !m.Remove(args[0]) {
				return oops.Code(avatar.CodeNotFound).
					With("query", args[0]).
					With("source", m.Path()).
					Wrapf(avatar.ErrNotFound, "%q is not mapped", args[0])
			}
			if err := m.Save(); err != nil {
				return err //nolint:wrapcheck // config errors already carry codes
			}
			cmd.Printf("Removed %s from %s.\n", args[0], m.Path())
			return nil
		},
	})

	return cmd
}

// mappingFile opens the config file that was loaded, or the default
// location when none exists yet.
func (a *app) mappingFile() (*config.MappingFile, error) {
	path := a.cfg.Path
	if path == "" {
		var err error
		if path, err = xdg.ConfigFile(); err != nil {
			return nil, err //nolint:wrapcheck // xdg errors already carry codes
		}
	}
	return config.OpenMappingFile(path) //nolint:wrapcheck // config errors already carry codes
}

func printAvatars(cmd *cobra.Command, avatars []avatar.Avatar) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	for _, av := range avatars {
		if _, err := fmt.Fprintf(w, "  %s\t%s\n", av.Name, av.ID); err != nil {
			return oops.Code("CLI_OUTPUT_FAILED").Wrap(err)
		}
	}
	if err := w.Flush(); err != nil {
		return oops.Code("CLI_OUTPUT_FAILED").Wrap(err)
	}
	return nil
}

// newConfigCmd creates the config subcommand group. Its subcommands work on
// a file without loading it as the active configuration.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration file format",
		// Overrides the root hook so a broken config can still be checked.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			schema, err := config.GenerateSchema()
			if err != nil {
				return oops.Code(config.CodeSchemaInvalid).Wrap(err)
			}
			cmd.Println(string(schema))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate [FILE]",
		Short: "Check a config file against the schema and value rules",
		Long: `Check a config file. Without FILE the --config flag or the default location
is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := validatePath(cmd, args)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(path) //nolint:gosec // path comes from the user
			if err != nil {
				if os.IsNotExist(err) {
					return oops.Code(config.CodeNotFound).With("path", path).Errorf("config file %s does not exist", path)
				}
				return oops.Code(config.CodeReadFailed).With("path", path).Wrap(err)
			}
			if err := config.ValidateSchema(data); err != nil {
				return oops.Code(config.CodeSchemaInvalid).With("path", path).
					Errorf("%s: %s", path, config.FormatSchemaError(err))
			}
			cfg, err := config.Load(config.LoadOptions{Path: path})
			if err != nil {
				return err //nolint:wrapcheck // config errors already carry codes
			}
			cmd.Printf("%s is valid (%d avatars mapped).\n", path, len(cfg.Avatars))
			return nil
		},
	})

	return cmd
}

func validatePath(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	if f := cmd.Flags().Lookup(config.FlagConfig); f != nil && f.Value.String() != "" {
		return f.Value.String(), nil
	}
	path, err := xdg.ConfigFile()
	if err != nil {
		return "", err //nolint:wrapcheck // xdg errors already carry codes
	}
	return path, nil
}
