package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"member-portal/internal/models"

	"github.com/spf13/cobra"
)

func newLoginCmd(getApp func() *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := getApp()
			if password == "" {
				password = os.Getenv("PORTAL_PASSWORD")
			}
			if email == "" || password == "" {
				return fmt.Errorf("--email and --password (or PORTAL_PASSWORD) are required")
			}
			user, err := a.api.Login(cmd.Context(), email, password)
			if err != nil {
				return a.fail(cmd.Context(), "login", err)
			}
			name := email
			if user != nil && user.DisplayName() != "" {
				name = user.DisplayName()
			}
			fmt.Fprintf(a.out, "Signed in as %s\n", name)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	return cmd
}

func newLogoutCmd(getApp func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := getApp()
			if err := a.api.Logout(cmd.Context()); err != nil {
				return a.fail(cmd.Context(), "logout", err)
			}
			fmt.Fprintln(a.out, "Signed out")
			return nil
		},
	}
}

func newWhoamiCmd(getApp func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the identity in the stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := getApp()
			if !a.creds.Authenticated(cmd.Context()) {
				fmt.Fprintln(a.out, "Not signed in")
				return nil
			}
			id, err := a.creds.Identity(cmd.Context())
			if err != nil {
				// opaque tokens carry no claims; fall back to the cached profile
				user, uerr := a.creds.User(cmd.Context())
				if uerr != nil || user == nil {
					fmt.Fprintln(a.out, "Signed in")
					return nil
				}
				fmt.Fprintf(a.out, "Signed in as %s (%s)\n", user.DisplayName(), user.Identifier())
				return nil
			}
			fmt.Fprintf(a.out, "Signed in as %s\n", firstNonEmpty(id.Name, id.Email, id.UserID))
			if id.UserID != "" {
				fmt.Fprintf(a.out, "User ID: %s\n", id.UserID)
			}
			if !id.ExpiresAt.IsZero() {
				fmt.Fprintf(a.out, "Expires: %s\n", id.ExpiresAt.Local().Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}

func newProfileCmd(getApp func() *app) *cobra.Command {
	var userID string
	var set []string
	var avatar string
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or update your profile",
		Long: `Show your profile, or update fields with --set key=value (repeatable)
and upload a profile picture with --avatar path.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := getApp()
			ctx := cmd.Context()
			if userID == "" {
				userID = currentUserID(cmd, a)
			}
			if userID == "" {
				return fmt.Errorf("not signed in; run `portal login` or pass --user-id")
			}

			if avatar != "" {
				f, err := os.Open(avatar)
				if err != nil {
					return err
				}
				defer f.Close()
				if err := a.api.UploadAvatar(ctx, userID, filepath.Base(avatar), f); err != nil {
					return a.fail(ctx, "upload avatar", err)
				}
				fmt.Fprintln(a.out, "Profile picture uploaded")
			}

			if len(set) > 0 {
				fields := make(map[string]interface{}, len(set))
				for _, kv := range set {
					k, v, ok := strings.Cut(kv, "=")
					if !ok || k == "" {
						return fmt.Errorf("invalid --set %q, expected key=value", kv)
					}
					fields[k] = v
				}
				if _, err := a.api.UpdateProfile(ctx, models.ProfileUpdate{UserID: userID, Fields: fields}); err != nil {
					return a.fail(ctx, "update profile", err)
				}
				fmt.Fprintln(a.out, "Profile updated")
			}

			p, err := a.api.GetProfile(ctx, userID)
			if err != nil {
				return a.fail(ctx, "get profile", err)
			}
			enc := json.NewEncoder(a.out)
			enc.SetIndent("", "  ")
			return enc.Encode(p)
		},
	}
	cmd.Flags().StringVar(&userID, "user-id", "", "user id (default: from the stored session)")
	cmd.Flags().StringArrayVar(&set, "set", nil, "field to update as key=value")
	cmd.Flags().StringVar(&avatar, "avatar", "", "image file to upload as profile picture")
	return cmd
}

func currentUserID(cmd *cobra.Command, a *app) string {
	if user, err := a.creds.User(cmd.Context()); err == nil && user != nil && user.Identifier() != "" {
		return user.Identifier()
	}
	if id, err := a.creds.Identity(cmd.Context()); err == nil {
		return id.UserID
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
