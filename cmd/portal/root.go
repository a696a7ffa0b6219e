package main

import (
	"io"

	"github.com/spf13/cobra"
)

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	var (
		opts appOptions
		a    *app
	)
	getApp := func() *app { return a }

	root := &cobra.Command{
		Use:   "portal",
		Short: "Member portal client",
		Long: `portal talks to the membership backend: sign in, view and edit your
profile, and enroll in a membership plan, including the PayPal redirect.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			built, err := newApp(cmd.Context(), opts, out, errOut)
			if err != nil {
				return err
			}
			a = built
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a != nil {
				a.close()
			}
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ./configs/config.yaml)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override logging.level")

	root.AddCommand(
		newLoginCmd(getApp),
		newLogoutCmd(getApp),
		newWhoamiCmd(getApp),
		newProfileCmd(getApp),
		newPlansCmd(getApp),
		newEnrollCmd(getApp),
		newResumeCmd(getApp),
		newServeCmd(getApp),
	)
	return root
}
