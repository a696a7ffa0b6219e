package main

import (
	"bufio"
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"member-portal/internal/callback"
	"member-portal/internal/common/validation"
	"member-portal/internal/membership"

	"github.com/spf13/cobra"
)

func newPlansCmd(getApp func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "plans",
		Short: "List membership plans",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := getApp()
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PLAN\tTIER\tPRICE\tAVAILABLE")
			fmt.Fprintln(tw, "free\tFREE\t0.00\tyes")
			for _, p := range membership.AllPlans {
				entry, _ := a.plans.Entry(p)
				available := "yes"
				if _, err := a.plans.RemoteID(p); err != nil {
					available = "no"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p, membership.DeriveTier(membership.ChoicePaid, p), entry.Price, available)
			}
			return tw.Flush()
		},
	}
}

type enrollFlags struct {
	free    bool
	plan    string
	wait    bool
	timeout time.Duration
	form    validation.SignupForm
}

func newEnrollCmd(getApp func() *app) *cobra.Command {
	var f enrollFlags
	cmd := &cobra.Command{
		Use:   "enroll",
		Short: "Sign up for a membership",
		Long: `Sign up as a free member (--free) or for a paid plan (--plan, see
"portal plans"). Paid plans print the PayPal approval link; with --wait the
callback server is started and the command returns once PayPal redirects back.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnroll(cmd.Context(), getApp(), f)
		},
	}
	fl := cmd.Flags()
	fl.BoolVar(&f.free, "free", false, "free membership")
	fl.StringVar(&f.plan, "plan", "", "paid plan identifier")
	fl.BoolVar(&f.wait, "wait", false, "serve the payment callback and wait for the result")
	fl.DurationVar(&f.timeout, "wait-timeout", 30*time.Minute, "how long --wait waits")
	fl.StringVar(&f.form.FirstName, "first-name", "", "first name")
	fl.StringVar(&f.form.LastName, "last-name", "", "last name")
	fl.StringVar(&f.form.Title, "title", "", "academic title")
	fl.StringVar(&f.form.Phone, "phone", "", "phone number")
	fl.StringVar(&f.form.Affiliation, "affiliation", "", "institution")
	fl.StringVar(&f.form.Department, "department", "", "department")
	fl.StringVar(&f.form.City, "city", "", "city")
	fl.StringVar(&f.form.Country, "country", "", "country")
	fl.StringVar(&f.form.Email, "email", "", "email")
	fl.StringVar(&f.form.Password, "password", "", "password (or PORTAL_PASSWORD)")
	fl.StringVar(&f.form.RepeatPassword, "repeat-password", "", "repeat password (defaults to --password)")
	return cmd
}

func runEnroll(ctx context.Context, a *app, f enrollFlags) error {
	flow, err := a.newFlow()
	if err != nil {
		return err
	}

	switch {
	case f.free:
		err = flow.ChooseFree()
	case f.plan != "":
		var p membership.Plan
		if p, err = membership.ParsePlan(f.plan); err == nil {
			err = flow.ChoosePlan(p)
		}
	default:
		err = flow.ChooseMember()
	}
	if err != nil {
		return a.fail(ctx, "choose plan", err)
	}

	if f.form.Password == "" {
		f.form.Password = os.Getenv("PORTAL_PASSWORD")
	}
	if f.form.RepeatPassword == "" {
		f.form.RepeatPassword = f.form.Password
	}
	if code := flow.Captcha(); code != "" {
		fmt.Fprintf(a.errOut, "Type the code %s: ", code)
		line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		f.form.Captcha = strings.TrimSpace(line)
	}

	var srv *callback.Server
	if f.wait && !f.free {
		srv = callback.NewServer(a.cfg.Server.Address, flow, a.log)
		go func() {
			if err := srv.ListenAndServe(); err != nil {
				a.log.Error("Callback server stopped", map[string]interface{}{"error": err.Error()})
			}
		}()
		defer shutdown(srv)
	}

	out, err := flow.Submit(ctx, f.form)
	if err != nil {
		if vr, ok := err.(*validation.ValidationResult); ok {
			for _, fe := range vr.Errors {
				fmt.Fprintf(a.errOut, "  %s: %s\n", fe.Field, fe.Message)
			}
			return fmt.Errorf("please correct the fields above")
		}
		return a.fail(ctx, "signup", err)
	}

	if out.State == membership.StateResumedSuccess {
		fmt.Fprintf(a.out, "Welcome! Your %s membership is active (user %s).\n", out.Tier, out.UserID)
		return nil
	}

	fmt.Fprintf(a.out, "Complete your %s payment at:\n  %s\n", out.Tier, out.RedirectURL)
	if srv == nil {
		fmt.Fprintln(a.out, "Afterwards run `portal resume --url <return address>` or keep `portal serve` running.")
		return nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	select {
	case res := <-srv.Resolved():
		return report(ctx, a, res)
	case <-waitCtx.Done():
		return fmt.Errorf("no payment result received; your enrollment can still be completed with `portal resume`")
	}
}

func newResumeCmd(getApp func() *app) *cobra.Command {
	var rawURL string
	var cancelled bool
	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Finish an enrollment from the PayPal return address",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := getApp()
			ctx := cmd.Context()
			flow, err := a.newFlow()
			if err != nil {
				return err
			}

			var out *membership.Outcome
			if cancelled {
				out, err = flow.Cancel(ctx)
			} else {
				var query url.Values
				if query, err = parseReturn(rawURL); err != nil {
					return err
				}
				out, err = flow.Resume(ctx, query)
			}
			if out == nil {
				return a.fail(ctx, "resume", err)
			}
			if out.State == membership.StateResumedSuccess {
				if _, cerr := flow.ConsumeConfirmation(ctx); cerr != nil {
					a.log.Warn("Failed to clear confirmation flags", map[string]interface{}{"error": cerr.Error()})
				}
			}
			return report(ctx, a, out)
		},
	}
	cmd.Flags().StringVar(&rawURL, "url", "", "return address or query string from PayPal")
	cmd.Flags().BoolVar(&cancelled, "cancelled", false, "the payment was cancelled at PayPal")
	return cmd
}

// parseReturn accepts a full URL, a "?a=b" query or a bare "a=b" query.
func parseReturn(raw string) (url.Values, error) {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid return address: %w", err)
		}
		return u.Query(), nil
	}
	q, err := url.ParseQuery(strings.TrimPrefix(raw, "?"))
	if err != nil {
		return nil, fmt.Errorf("invalid return query: %w", err)
	}
	return q, nil
}

func report(ctx context.Context, a *app, out *membership.Outcome) error {
	if out.State == membership.StateResumedSuccess {
		fmt.Fprintf(a.out, "Payment confirmed. Your %s membership is active.\n", out.Tier)
		if out.SubscriptionID != "" {
			fmt.Fprintf(a.out, "Subscription: %s\n", out.SubscriptionID)
		}
		return nil
	}
	return fmt.Errorf("enrollment not completed: %s", out.Error)
}
