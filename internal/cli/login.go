package cli

import (
	"errors"
	"strings"

	"emctl/internal/store"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

func newLoginCmd(app *App) *cobra.Command {
	var (
		username string
		password string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the bearer token",
		Long:  "Log in with username and password. Missing values are prompted for interactively. The token is stored in the config dir with mode 0600.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(username) == "" || password == "" {
				if err := promptCredentials(&username, &password); err != nil {
					return writeErr(cmd, err)
				}
			}
			c, err := app.client(false)
			if err != nil {
				return writeErr(cmd, err)
			}
			resp, err := c.Login(cmd.Context(), strings.TrimSpace(username), password)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := store.SaveToken(resp.Token); err != nil {
				return writeErr(cmd, err)
			}
			// Remember an explicitly passed server for later commands.
			if cmd.Flags().Changed("base-url") {
				fileCfg, err := store.LoadFileConfig()
				if err != nil {
					return writeErr(cmd, err)
				}
				fileCfg.BaseURL = app.cfg.BaseURL
				if err := store.SaveConfig(fileCfg); err != nil {
					return writeErr(cmd, err)
				}
			}
			app.logger.Info("logged in", "user", username, "baseUrl", app.cfg.BaseURL)
			return writeOut(cmd, app, map[string]any{"data": map[string]any{
				"loggedIn":  true,
				"username":  strings.TrimSpace(username),
				"tokenType": resp.TokenType,
				"baseUrl":   app.cfg.BaseURL,
			}})
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Username")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted when omitted)")
	return cmd
}

func promptCredentials(username, password *string) error {
	notEmpty := func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New("required")
		}
		return nil
	}
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Username").
				Value(username).
				Validate(notEmpty),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(password).
				Validate(notEmpty),
		),
	)
	if err := form.Run(); err != nil {
		return errors.New("login cancelled")
	}
	return nil
}

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := store.ClearToken(); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"loggedIn": false}})
		},
	}
}
