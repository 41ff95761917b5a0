// Command glhm is the GLHM console client: it keeps an authenticated session
// with the backend and exposes it on the command line or as a local console server.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/glhm/console/config"
	"github.com/glhm/console/internal/bootstrap"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
	Out    io.Writer
	In     io.Reader

	// build wires the console; replaced in tests.
	build func(ctx context.Context, deps bootstrap.ConsoleDeps) (*bootstrap.Console, error)
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr)) //nolint:forbidigo // CLI must propagate its exit status
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		_ = printUsage(stderr)
		return 2
	}

	cmdName := args[0]
	cmd, ok := commands()[cmdName]
	if !ok {
		_ = writef(stderr, "unknown command %q\n\n", cmdName)
		_ = printUsage(stderr)
		return 2
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		_ = writef(stderr, "load config: %v\n", err)
		return 1
	}
	logger := bootstrap.NewLogger(stderr, &cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmdCtx := &commandContext{
		Ctx:    ctx,
		Logger: logger,
		Config: cfg,
		Out:    stdout,
		In:     stdin,
		build:  bootstrap.Build,
	}
	if runErr := cmd.run(cmdCtx, args[1:]); runErr != nil {
		logger.ErrorContext(ctx, "command failed", "command", cmdName, "error", runErr)
		return 1
	}
	return 0
}

func commands() map[string]command {
	return map[string]command{
		"status": {
			name:        "status",
			description: "Show the session state and credential expiry",
			run:         runStatus,
		},
		"whoami": {
			name:        "whoami",
			description: "Print the logged-in user's profile",
			run:         runWhoami,
		},
		"login": {
			name:        "login",
			description: "Log in with an RSA-encrypted password",
			run:         runLogin,
		},
		"register": {
			name:        "register",
			description: "Create an account and log into it",
			run:         runRegister,
		},
		"logout": {
			name:        "logout",
			description: "End the session and forget the stored credential",
			run:         runLogout,
		},
		"can-register": {
			name:        "can-register",
			description: "Report whether self registration is open",
			run:         runCanRegister,
		},
		"navigate": {
			name:        "navigate",
			description: "Resolve a console path through the route guard",
			run:         runNavigate,
		},
		"image-upload": {
			name:        "image-upload",
			description: "Upload a new image, or replace one with --id",
			run:         runImageUpload,
		},
		"image-get": {
			name:        "image-get",
			description: "Download an image",
			run:         runImageGet,
		},
		"image-delete": {
			name:        "image-delete",
			description: "Delete an image",
			run:         runImageDelete,
		},
		"serve": {
			name:        "serve",
			description: "Run the local console HTTP server",
			run:         runServe,
		},
	}
}

func printUsage(w io.Writer) error {
	if err := writef(w, "Usage: glhm <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(w, "Available commands:\n"); err != nil {
		return err
	}
	cmds := commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := writef(w, "  %-16s %s\n", name, cmds[name].description); err != nil {
			return err
		}
	}
	return nil
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}
