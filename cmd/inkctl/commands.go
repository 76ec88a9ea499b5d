package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"inkwell/internal/client"
	"inkwell/internal/countdown"
	"inkwell/internal/models"
	"inkwell/internal/passcheck"
	"inkwell/internal/validation"
	"os"
	"strings"

	"github.com/gookit/color"
)

// maxPasswordAttempts bounds how often a rejected new password is asked again
const maxPasswordAttempts = 3

var errPasswordRejected = errors.New("no acceptable password entered")

func (a *app) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	return fs
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := a.flags("login")
	emailAddr := fs.String("email", "", "Account email")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	if *emailAddr == "" {
		var err error
		if *emailAddr, err = a.prompt.Line("Email"); err != nil {
			return err
		}
	}
	password, err := a.prompt.Secret("Password")
	if err != nil {
		return err
	}

	flow := client.NewLoginFlow(a.api, *emailAddr, password, countdown.WithClock(a.now))
	stage, err := flow.Submit(ctx)
	if err != nil {
		return err
	}

	for stage == client.StageCode {
		fmt.Fprintf(a.out, "A sign-in code was emailed to you. It expires in %s.\n", flow.Code())
		answer, err := a.prompt.Line("Code (or \"resend\")")
		if err != nil {
			return err
		}

		if answer == "resend" {
			sent, err := flow.Resend(ctx)
			switch {
			case err != nil:
				a.fail(err)
			case !sent:
				fmt.Fprintf(a.out, "Your current code is still valid for %s.\n", flow.Code())
			default:
				a.success("New code sent!")
			}
			continue
		}

		stage, err = flow.SubmitCode(ctx, answer)
		switch {
		case errors.Is(err, client.ErrCodeExpired):
			a.fail(err)
		case errors.Is(err, client.ErrWaiting):
			fmt.Fprintln(a.errOut, color.Red.Sprintf("Too many attempts. Try again in %s.", flow.Wait()))
			return err
		case err != nil:
			a.fail(err)
		}
	}

	switch stage {
	case client.StageVerification:
		a.success("Confirmation email sent! Follow the link, then sign in again.")
	case client.StageDone:
		tokens := flow.Tokens()
		a.success("Signed in.")
		fmt.Fprintf(a.out, "access_token=%s\nrefresh_token=%s\n", tokens.AccessToken, tokens.RefreshToken)
	}
	return nil
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := a.flags("register")
	name := fs.String("name", "", "Display name")
	emailAddr := fs.String("email", "", "Account email")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	var err error
	if *name == "" {
		if *name, err = a.prompt.Line("Name"); err != nil {
			return err
		}
	}
	if *emailAddr == "" {
		if *emailAddr, err = a.prompt.Line("Email"); err != nil {
			return err
		}
	}
	password, err := a.newPassword(ctx, "Password")
	if err != nil {
		return err
	}

	msg, err := a.api.Register(ctx, models.RegisterRequest{Name: *name, Email: *emailAddr, Password: password})
	if err != nil {
		return err
	}
	a.success(msg)
	return nil
}

func (a *app) changePassword(ctx context.Context, args []string) error {
	fs := a.flags("change-password")
	token := fs.String("token", os.Getenv("INKWELL_TOKEN"), "Access token from login")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if *token == "" {
		fmt.Fprintln(a.errOut, "change-password needs -token or INKWELL_TOKEN")
		return errUsage
	}
	a.api.SetToken(*token)

	current, err := a.prompt.Secret("Current password")
	if err != nil {
		return err
	}
	next, err := a.newPassword(ctx, "New password")
	if err != nil {
		return err
	}

	if _, err := a.api.UpdateSettings(ctx, models.UpdateSettingsRequest{Password: &current, NewPassword: &next}); err != nil {
		return err
	}
	a.success("Password updated!")
	return nil
}

func (a *app) resetPassword(ctx context.Context, args []string) error {
	fs := a.flags("reset-password")
	emailAddr := fs.String("email", "", "Account email to send the reset link to")
	token := fs.String("token", "", "Token from the reset email")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	if *token == "" {
		if *emailAddr == "" {
			var err error
			if *emailAddr, err = a.prompt.Line("Email"); err != nil {
				return err
			}
		}
		msg, err := a.api.RequestPasswordReset(ctx, *emailAddr)
		if err != nil {
			return err
		}
		a.success(msg)
		return nil
	}

	password, err := a.newPassword(ctx, "New password")
	if err != nil {
		return err
	}
	msg, err := a.api.CompletePasswordReset(ctx, *token, password)
	if err != nil {
		return err
	}
	a.success(msg)
	return nil
}

func (a *app) checkPassword(ctx context.Context, args []string) error {
	fs := a.flags("check-password")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	password, err := a.prompt.Secret("Password")
	if err != nil {
		return err
	}
	ctrl := passcheck.New(a.checker, nil)
	verdict := a.settle(ctx, ctrl, password)
	if verdict == passcheck.Compromised {
		return errors.New(ctrl.Message())
	}
	return nil
}

// newPassword prompts until a password passes the field rules, the breach
// check and the confirmation.
func (a *app) newPassword(ctx context.Context, label string) (string, error) {
	validate := validation.Field("required,password")
	ctrl := passcheck.New(a.checker, validate)

	for attempt := 0; attempt < maxPasswordAttempts; attempt++ {
		password, err := a.prompt.Secret(label)
		if err != nil {
			return "", err
		}
		if err := validate(password); err != nil {
			fmt.Fprintln(a.errOut, color.Red.Sprint(err.Error()))
			continue
		}
		if a.settle(ctx, ctrl, password) == passcheck.Compromised {
			continue
		}

		confirm, err := a.prompt.Secret("Confirm " + strings.ToLower(label))
		if err != nil {
			return "", err
		}
		if confirm != password {
			fmt.Fprintln(a.errOut, color.Red.Sprint("Passwords do not match"))
			continue
		}
		return password, nil
	}
	return "", errPasswordRejected
}

// settle runs the breach check to completion and prints the verdict
func (a *app) settle(ctx context.Context, ctrl *passcheck.Controller, password string) passcheck.Verdict {
	if ctrl.Evaluate(ctx, password) == passcheck.Checking {
		fmt.Fprintln(a.out, color.Gray.Sprint(passcheck.MessageFor(passcheck.Checking)))
	}
	ctrl.Wait()

	verdict := ctrl.Verdict()
	switch verdict {
	case passcheck.Compromised:
		fmt.Fprintln(a.errOut, color.Red.Sprint(ctrl.Message()))
	case passcheck.Secure:
		if err := ctrl.Err(); err != nil {
			fmt.Fprintln(a.out, color.Yellow.Sprint("Could not reach the breach check, continuing."))
		} else {
			fmt.Fprintln(a.out, color.Green.Sprint(ctrl.Message()))
		}
	}
	return verdict
}
