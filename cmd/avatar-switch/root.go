// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 avatar-switch Contributors

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"github.com/vrcswitch/avatar-switch/internal/auth"
	"github.com/vrcswitch/avatar-switch/internal/config"
	"github.com/vrcswitch/avatar-switch/internal/console"
	"github.com/vrcswitch/avatar-switch/internal/logging"
	"github.com/vrcswitch/avatar-switch/pkg/errutil"
)

const serviceName = "avatar-switch"

// app carries state shared by the root command and its subcommands.
type app struct {
	deps   *SwitchDeps
	cfg    *config.Config
	logger *slog.Logger
}

// NewRootCmd creates the root command for the avatar-switch CLI.
func NewRootCmd() *cobra.Command {
	cmd, _ := newRootCmd(nil)
	return cmd
}

func newRootCmd(deps *SwitchDeps) (*cobra.Command, *app) {
	a := &app{deps: deps.withDefaults(), logger: logging.Discard()}

	cmd := &cobra.Command{
		Use:   "avatar-switch [avatar-name]",
		Short: "Switch your VRChat avatar from the command line",
		Long: `avatar-switch logs in to VRChat, finds the avatar whose name contains the
given text and makes it your current avatar.

Names are matched case-insensitively against the avatars listed in the config
file, or against your favorited avatars when the config lists none. The session
cookie is saved so later runs skip the login.`,
		Args:              cobra.ArbitraryArgs,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error { return a.load(cmd) },
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSwitch(cmd.Context(), strings.Join(args, " "))
		},
	}
	cmd.SetIn(a.deps.Stdin)
	cmd.SetOut(a.deps.Stdout)
	cmd.SetErr(a.deps.Stderr)

	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(newListCmd(a))
	cmd.AddCommand(newLogoutCmd(a))
	cmd.AddCommand(newMapCmd(a))
	cmd.AddCommand(newConfigCmd())

	return cmd, a
}

// load reads the configuration and sets up logging for this run.
func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(config.OptionsFromFlags(cmd.Flags()))
	if err != nil {
		return err //nolint:wrapcheck // config errors already carry codes
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err //nolint:wrapcheck // config errors already carry codes
	}

	a.cfg = cfg
	a.logger = logging.Setup(serviceName, version, cfg.LogFormat, level, a.deps.Stderr).
		With("run_id", ulid.Make().String())
	a.logger.Debug("configuration loaded",
		"config_file", cfg.Path,
		"base_url", cfg.BaseURL,
		"cookie_file", cfg.CookieFile,
		"static_avatars", len(cfg.Avatars),
	)
	return nil
}

func (a *app) credentials() auth.Credentials {
	return auth.Credentials{
		Username:         a.cfg.Username,
		Password:         a.cfg.Password,
		SecondFactorCode: a.cfg.MFACode,
	}
}

func (a *app) runSwitch(ctx context.Context, query string) error {
	c, err := a.build()
	if err != nil {
		return err
	}
	return c.driver.Run(ctx, console.RunOptions{ //nolint:wrapcheck // driver errors already carry codes
		Credentials: a.credentials(),
		Query:       query,
		Loop:        a.cfg.Loop,
	})
}

// report logs err at debug level and prints the console message.
func (a *app) report(err error) {
	if a.logger.Enabled(context.Background(), slog.LevelDebug) {
		errutil.LogError(a.logger, "command failed", err)
	}
	_, _ = fmt.Fprintln(a.deps.Stderr, userMessage(err))
}

// userMessage returns the console text for err. Errors without a code come
// from argument parsing and are shown as they are.
func userMessage(err error) string {
	if errutil.Code(err) == "" && !errors.Is(err, context.Canceled) {
		return fmt.Sprintf("Error: %v\nRun '%s --help' for usage.", err, serviceName)
	}
	return console.Message(err)
}
