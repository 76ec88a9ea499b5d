// Package main provides inkctl, a terminal client for the Inkwell account API
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"inkwell/internal/client"
	"inkwell/internal/pwned"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gookit/color"
	"github.com/joho/godotenv"
)

const usage = `Usage: inkctl [-api URL] <command> [flags]

Commands:
  login             sign in, answering the emailed code when two-factor is on
  register          create an account
  change-password   change the password of the signed-in account
  reset-password    request a reset link, or complete one with -token
  check-password    check a password against known data breaches
`

// errUsage marks failures that should print the usage text
var errUsage = errors.New("invalid usage")

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		color.Red.Println("Error loading .env file: " + err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp(os.Stdin, os.Stdout, os.Stderr)
	if err := app.run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// app holds the terminal and the services one command run needs
type app struct {
	prompt  *prompter
	out     io.Writer
	errOut  io.Writer
	checker pwned.Checker
	api     *client.Client
	now     func() time.Time
}

func newApp(in io.Reader, out, errOut io.Writer) *app {
	return &app{
		prompt:  newPrompter(in, out),
		out:     out,
		errOut:  errOut,
		checker: pwned.NewClient(pwned.Config{UserAgent: "inkctl"}),
		now:     time.Now,
	}
}

func (a *app) run(ctx context.Context, args []string) error {
	global := flag.NewFlagSet("inkctl", flag.ContinueOnError)
	global.SetOutput(a.errOut)
	apiURL := global.String("api", envOr("INKWELL_API_URL", "http://localhost:8080"), "Base URL of the Inkwell API")
	if err := global.Parse(args); err != nil {
		return errUsage
	}
	if global.NArg() == 0 {
		return errUsage
	}
	if a.api == nil {
		a.api = client.New(*apiURL)
	}

	name, rest := global.Arg(0), global.Args()[1:]
	var err error
	switch name {
	case "login":
		err = a.login(ctx, rest)
	case "register":
		err = a.register(ctx, rest)
	case "change-password":
		err = a.changePassword(ctx, rest)
	case "reset-password":
		err = a.resetPassword(ctx, rest)
	case "check-password":
		err = a.checkPassword(ctx, rest)
	default:
		return errUsage
	}
	if err != nil && !errors.Is(err, errUsage) {
		a.fail(err)
	}
	return err
}

// fail prints err the way the API would word it
func (a *app) fail(err error) {
	msg := err.Error()
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		msg = apiErr.Message
		if apiErr.WaitTime > 0 {
			msg = fmt.Sprintf("%s Try again in %ds.", msg, apiErr.WaitTime)
		}
	}
	fmt.Fprintln(a.errOut, color.Red.Sprint(msg))
}

func (a *app) success(msg string) {
	fmt.Fprintln(a.out, color.Green.Sprint(msg))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
