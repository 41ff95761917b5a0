package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glhm/console/internal/apiclient"
	"github.com/glhm/console/internal/bootstrap"
	"github.com/glhm/console/internal/credential"
	domainauth "github.com/glhm/console/internal/domain/auth"
	apperrors "github.com/glhm/console/internal/errors"
	"github.com/glhm/console/internal/util"
)

var errNotLoggedIn = errors.New("not logged in")

// withConsole wires the console, restores the session and runs fn.
func (c *commandContext) withConsole(fn func(con *bootstrap.Console) error) error {
	con, err := c.build(c.Ctx, bootstrap.ConsoleDeps{Config: &c.Config, Logger: c.Logger})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := con.Close(); cerr != nil {
			c.Logger.WarnContext(c.Ctx, "close console", "error", cerr)
		}
	}()

	if _, err := con.Session.Init(c.Ctx); err != nil {
		c.Logger.WarnContext(c.Ctx, "session init failed, continuing logged out", "error", err)
	}
	return fn(con)
}

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

type queryOptions struct {
	Query string
}

func (o *queryOptions) register(fs *flag.FlagSet) {
	fs.StringVar(&o.Query, "query", "", "JMESPath expression applied to the JSON output")
}

func parseQueryFlags(name string, args []string) (queryOptions, error) {
	fs := newFlagSet(name)
	var opts queryOptions
	opts.register(fs)
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	return opts, util.ValidateQuery(opts.Query)
}

type statusOutput struct {
	domainauth.Session
	Token     *domainauth.TokenInfo `json:"token,omitempty"`
	ExpiresIn string                `json:"expires_in,omitempty"`
}

func runStatus(c *commandContext, args []string) error {
	opts, err := parseQueryFlags("status", args)
	if err != nil {
		return err
	}
	return c.withConsole(func(con *bootstrap.Console) error {
		snap := con.Session.Snapshot()
		out := statusOutput{Session: snap}
		if info, ok := credential.Inspect(snap.Credential); ok {
			out.Token = &info
			out.ExpiresIn = util.FormatRemaining(info.ExpiresAt, time.Now())
		}
		return util.WriteJSON(c.Out, out, opts.Query)
	})
}

func runWhoami(c *commandContext, args []string) error {
	opts, err := parseQueryFlags("whoami", args)
	if err != nil {
		return err
	}
	return c.withConsole(func(con *bootstrap.Console) error {
		if !con.Session.IsLoggedIn() {
			return errNotLoggedIn
		}
		user, err := con.Session.FetchUserInfo(c.Ctx)
		if err != nil {
			return err
		}
		return util.WriteJSON(c.Out, user, opts.Query)
	})
}

type credentialOptions struct {
	Username      string
	Password      string
	PasswordStdin bool
}

func (o *credentialOptions) register(fs *flag.FlagSet) {
	fs.StringVar(&o.Username, "username", "", "Account username (required)")
	fs.StringVar(&o.Password, "password", "", "Account password (prefer --password-stdin)")
	fs.BoolVar(&o.PasswordStdin, "password-stdin", false, "Read the password from the first line of stdin")
}

func (o *credentialOptions) resolve(in io.Reader) error {
	o.Username = strings.TrimSpace(o.Username)
	if o.Username == "" {
		return errors.New("--username is required")
	}
	if o.PasswordStdin {
		if o.Password != "" {
			return errors.New("--password and --password-stdin are mutually exclusive")
		}
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read password: %w", err)
		}
		o.Password = strings.TrimRight(line, "\r\n")
	}
	if o.Password == "" {
		return errors.New("a password is required")
	}
	return nil
}

type loginOptions struct {
	credentialOptions
	Remember bool
}

func parseLoginFlags(args []string, in io.Reader) (loginOptions, error) {
	fs := newFlagSet("login")
	var opts loginOptions
	opts.credentialOptions.register(fs)
	fs.BoolVar(&opts.Remember, "remember", true, "Ask the backend for a long-lived credential")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	return opts, opts.resolve(in)
}

func runLogin(c *commandContext, args []string) error {
	opts, err := parseLoginFlags(args, c.In)
	if err != nil {
		return err
	}
	return c.withConsole(func(con *bootstrap.Console) error {
		if err := con.Session.Login(c.Ctx, opts.Username, opts.Password, opts.Remember); err != nil {
			return errors.New(apperrors.UserMessage(err, "login failed, please retry"))
		}
		return writef(c.Out, "logged in as %s\n", displayName(con))
	})
}

type registerOptions struct {
	credentialOptions
	Email string
}

func parseRegisterFlags(args []string, in io.Reader) (registerOptions, error) {
	fs := newFlagSet("register")
	var opts registerOptions
	opts.credentialOptions.register(fs)
	fs.StringVar(&opts.Email, "email", "", "Account email")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	return opts, opts.resolve(in)
}

func runRegister(c *commandContext, args []string) error {
	opts, err := parseRegisterFlags(args, c.In)
	if err != nil {
		return err
	}
	return c.withConsole(func(con *bootstrap.Console) error {
		in := domainauth.RegisterInput{Username: opts.Username, Password: opts.Password, Email: strings.TrimSpace(opts.Email)}
		if err := con.Session.Register(c.Ctx, in); err != nil {
			return errors.New(apperrors.UserMessage(err, "registration failed, please retry"))
		}
		return writef(c.Out, "registered and logged in as %s\n", displayName(con))
	})
}

func displayName(con *bootstrap.Console) string {
	if u := con.Session.User(); u != nil && u.Username != "" {
		return u.Username
	}
	return "(unknown user)"
}

func runLogout(c *commandContext, _ []string) error {
	return c.withConsole(func(con *bootstrap.Console) error {
		if err := con.Session.Logout(c.Ctx); err != nil {
			return err
		}
		return writef(c.Out, "logged out\n")
	})
}

func runCanRegister(c *commandContext, _ []string) error {
	return c.withConsole(func(con *bootstrap.Console) error {
		return writef(c.Out, "%t\n", con.Session.CheckCanRegister(c.Ctx))
	})
}

func runNavigate(c *commandContext, args []string) error {
	fs := newFlagSet("navigate")
	var opts queryOptions
	opts.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: glhm navigate [--query expr] <path>")
	}
	if err := util.ValidateQuery(opts.Query); err != nil {
		return err
	}
	return c.withConsole(func(con *bootstrap.Console) error {
		nav, err := con.Router.Navigate(c.Ctx, fs.Arg(0))
		if err != nil {
			return err
		}
		return util.WriteJSON(c.Out, nav, opts.Query)
	})
}

type imageUploadOptions struct {
	File string
	ID   string
}

func parseImageUploadFlags(args []string) (imageUploadOptions, error) {
	fs := newFlagSet("image-upload")
	var opts imageUploadOptions
	fs.StringVar(&opts.File, "file", "", "Image file to upload (required)")
	fs.StringVar(&opts.ID, "id", "", "Existing image id to replace")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.File == "" {
		return opts, errors.New("--file is required")
	}
	return opts, nil
}

func runImageUpload(c *commandContext, args []string) error {
	opts, err := parseImageUploadFlags(args)
	if err != nil {
		return err
	}
	f, err := os.Open(opts.File)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	file := apiclient.File{
		Name:        filepath.Base(opts.File),
		ContentType: mime.TypeByExtension(filepath.Ext(opts.File)),
		Body:        f,
	}
	return c.withConsole(func(con *bootstrap.Console) error {
		if !con.Session.IsLoggedIn() {
			return errNotLoggedIn
		}
		var id string
		if opts.ID != "" {
			id, err = con.Images.Update(c.Ctx, opts.ID, file)
		} else {
			id, err = con.Images.Upload(c.Ctx, file)
		}
		if err != nil {
			return err
		}
		return writef(c.Out, "%s\n", id)
	})
}

type imageGetOptions struct {
	ID     string
	Out    string
	Native bool
}

func parseImageGetFlags(args []string) (imageGetOptions, error) {
	fs := newFlagSet("image-get")
	var opts imageGetOptions
	fs.StringVar(&opts.ID, "id", "", "Image id (required)")
	fs.StringVar(&opts.Out, "out", "", "Write the image to this file instead of stdout")
	fs.BoolVar(&opts.Native, "native", false, "Authenticate with the cookie only, like a browser image tag")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.ID == "" {
		return opts, errors.New("--id is required")
	}
	return opts, nil
}

func runImageGet(c *commandContext, args []string) error {
	opts, err := parseImageGetFlags(args)
	if err != nil {
		return err
	}
	return c.withConsole(func(con *bootstrap.Console) error {
		get := con.Images.Get
		if opts.Native {
			get = con.Images.GetNative
		}
		blob, err := get(c.Ctx, opts.ID)
		if err != nil {
			return err
		}
		if opts.Out == "" {
			_, err = c.Out.Write(blob.Data)
			return err
		}
		if err := os.WriteFile(opts.Out, blob.Data, 0o600); err != nil {
			return fmt.Errorf("write image: %w", err)
		}
		c.Logger.InfoContext(c.Ctx, "image saved", "path", opts.Out, "content_type", blob.ContentType, "bytes", len(blob.Data))
		return nil
	})
}

func runImageDelete(c *commandContext, args []string) error {
	fs := newFlagSet("image-delete")
	id := fs.String("id", "", "Image id (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *id == "" {
		return errors.New("--id is required")
	}
	return c.withConsole(func(con *bootstrap.Console) error {
		if err := con.Images.Delete(c.Ctx, *id); err != nil {
			return err
		}
		return writef(c.Out, "deleted %s\n", *id)
	})
}

func runServe(c *commandContext, args []string) error {
	fs := newFlagSet("serve")
	fs.StringVar(&c.Config.Console.Addr, "addr", c.Config.Console.Addr, "Address to bind the console server to")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return c.withConsole(func(con *bootstrap.Console) error {
		return bootstrap.ListenAndServe(c.Ctx, con)
	})
}
