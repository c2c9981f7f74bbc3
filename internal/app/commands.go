package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/samvad-hq/gotrue-go/internal/session"
	"github.com/samvad-hq/gotrue-go/pkg/gotrue"
	"github.com/samvad-hq/gotrue-go/pkg/publishers"
	"github.com/spf13/pflag"
)

const defaultProfile = "default"

// ErrUnknownCommand is returned by Run for names not in the command table.
var ErrUnknownCommand = errors.New("unknown command")

type command struct {
	summary string
	run     func(a *App, ctx context.Context, args []string) error
}

var commands = map[string]command{
	"settings":      {"show the service settings", (*App).runSettings},
	"signup":        {"register a user", (*App).runSignUp},
	"signin":        {"sign in with email and password and cache the session", (*App).runSignIn},
	"refresh":       {"refresh the cached (or given) session", (*App).runRefresh},
	"recover":       {"send a password recovery email", (*App).runRecover},
	"invite":        {"invite a user (needs a service token)", (*App).runInvite},
	"magiclink":     {"send a magic login link", (*App).runMagicLink},
	"logout":        {"revoke the session and forget it locally", (*App).runLogout},
	"user":          {"show the signed-in user", (*App).runUser},
	"update-user":   {"update email, password or metadata", (*App).runUpdateUser},
	"verify":        {"exchange an emailed token for a session", (*App).runVerify},
	"authorize-url": {"print the external provider login URL", (*App).runAuthorizeURL},
	"session":       {"show or forget a cached session", (*App).runSession},
}

// Usage writes the command list.
func Usage(w io.Writer) {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(w, "Usage: gotrue [global flags] <command> [flags]")
	fmt.Fprintln(w, "\nCommands:")
	for _, name := range names {
		fmt.Fprintf(w, "  %-14s %s\n", name, commands[name].summary)
	}
}

// Run executes the named command.
func (a *App) Run(ctx context.Context, name string, args []string) error {
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownCommand, name)
	}
	return cmd.run(a, ctx, args)
}

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SortFlags = false
	return fs
}

// credentialFlags are shared by commands that accept an email and a password.
type credentialFlags struct {
	email         *string
	password      *string
	passwordStdin *bool
}

func addCredentialFlags(fs *pflag.FlagSet) credentialFlags {
	return credentialFlags{
		email:         fs.String("email", "", "user email"),
		password:      fs.String("password", "", "user password"),
		passwordStdin: fs.Bool("password-stdin", false, "read the password from the first line of stdin"),
	}
}

func (a *App) password(f credentialFlags) (string, error) {
	if !*f.passwordStdin {
		return *f.password, nil
	}
	line, err := bufio.NewReader(a.in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password from stdin: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func toData(kv map[string]string) map[string]any {
	if len(kv) == 0 {
		return nil
	}
	out := make(map[string]any, len(kv))
	for k, v := range kv {
		out[k] = v
	}
	return out
}

func optional(fs *pflag.FlagSet, name, value string) *string {
	if !fs.Changed(name) {
		return nil
	}
	return &value
}

// profileFor names the cache entry every command uses: --profile, else "default".
func profileFor(profile string) string {
	if p := strings.TrimSpace(profile); p != "" {
		return p
	}
	return defaultProfile
}

// cachedSession resolves the session for profile or explains how to obtain one.
func (a *App) cachedSession(profile string) (session.Entry, error) {
	entry, found, err := a.store.Load(profile)
	if err != nil {
		return session.Entry{}, fmt.Errorf("load session %q: %w", profile, err)
	}
	if !found {
		return session.Entry{}, fmt.Errorf("no cached session for profile %q; sign in first or pass --jwt", profile)
	}
	return entry, nil
}

func (a *App) accessToken(jwt, profile string) (string, error) {
	if jwt != "" {
		return jwt, nil
	}
	entry, err := a.cachedSession(profile)
	if err != nil {
		return "", err
	}
	if entry.Expired(time.Now()) {
		return "", fmt.Errorf("access token for profile %q expired at %s; run refresh or pass --jwt",
			profile, entry.ExpiresAt.Format(time.RFC3339))
	}
	return entry.Session.AccessToken, nil
}

func (a *App) saveSession(ctx context.Context, typ, profile string, sess *gotrue.Session) error {
	if sess == nil {
		return a.printOK()
	}
	if _, err := a.store.Save(profile, *sess); err != nil {
		return fmt.Errorf("cache session %q: %w", profile, err)
	}

	email, userID := "", session.Subject(sess.AccessToken)
	if sess.User != nil {
		email = sess.User.Email
		if sess.User.ID != "" {
			userID = sess.User.ID
		}
	}
	a.emit(ctx, typ, email, userID)
	return a.print(sess)
}

func (a *App) runSettings(ctx context.Context, args []string) error {
	fs := newFlagSet("settings")
	if err := fs.Parse(args); err != nil {
		return err
	}
	settings, err := a.client.Settings(ctx)
	if err != nil {
		return err
	}
	return a.print(settings)
}

func (a *App) runSignUp(ctx context.Context, args []string) error {
	fs := newFlagSet("signup")
	creds := addCredentialFlags(fs)
	data := fs.StringToString("data", nil, "user metadata as key=value pairs")
	provider := fs.String("provider", "", "signup provider")
	audience := fs.String("audience", "", "audience (sent as aud)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	password, err := a.password(creds)
	if err != nil {
		return err
	}

	payload, err := a.client.SignUp(ctx, gotrue.Credentials{
		Email:    *creds.email,
		Password: password,
		Data:     toData(*data),
		Provider: optional(fs, "provider", *provider),
		Audience: optional(fs, "audience", *audience),
	})
	if err != nil {
		return err
	}

	// The user id only labels the audit event; an undecodable payload leaves it empty.
	var user gotrue.User
	if err := payload.Decode(&user); err != nil {
		a.log.DebugObj("signup payload has no user", "signup_payload", map[string]any{
			"error": err.Error(),
		})
	}
	a.emit(ctx, publishers.EventSignUp, *creds.email, user.ID)
	return a.print(payload)
}

func (a *App) runSignIn(ctx context.Context, args []string) error {
	fs := newFlagSet("signin")
	creds := addCredentialFlags(fs)
	profile := fs.String("profile", "", "session cache name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	password, err := a.password(creds)
	if err != nil {
		return err
	}

	sess, err := a.client.SignIn(ctx, gotrue.Credentials{Email: *creds.email, Password: password})
	if err != nil {
		return err
	}
	return a.saveSession(ctx, publishers.EventSignIn, profileFor(*profile), sess)
}

func (a *App) runRefresh(ctx context.Context, args []string) error {
	fs := newFlagSet("refresh")
	token := fs.String("refresh-token", "", "refresh token (defaults to the cached session's)")
	profile := fs.String("profile", "", "session cache name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	name := profileFor(*profile)
	refreshToken := *token
	if refreshToken == "" {
		entry, err := a.cachedSession(name)
		if err != nil {
			return err
		}
		refreshToken = entry.Session.RefreshToken
	}

	sess, err := a.client.RefreshAccessToken(ctx, refreshToken)
	if err != nil {
		return err
	}
	return a.saveSession(ctx, publishers.EventRefresh, name, sess)
}

func (a *App) runEmailOnly(ctx context.Context, name, event string, args []string, send func(context.Context, string) error) error {
	fs := newFlagSet(name)
	email := fs.String("email", "", "user email")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return fmt.Errorf("%s: --email is required", name)
	}
	if err := send(ctx, *email); err != nil {
		return err
	}
	a.emit(ctx, event, *email, "")
	return a.printOK()
}

func (a *App) runRecover(ctx context.Context, args []string) error {
	return a.runEmailOnly(ctx, "recover", publishers.EventRecover, args, a.client.Recover)
}

func (a *App) runMagicLink(ctx context.Context, args []string) error {
	return a.runEmailOnly(ctx, "magiclink", publishers.EventMagicLink, args, a.client.SendMagicLink)
}

func (a *App) runInvite(ctx context.Context, args []string) error {
	fs := newFlagSet("invite")
	email := fs.String("email", "", "email to invite")
	data := fs.StringToString("data", nil, "user metadata as key=value pairs")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return fmt.Errorf("invite: --email is required")
	}

	user, err := a.client.Invite(ctx, *email, toData(*data))
	if err != nil {
		return err
	}
	a.emit(ctx, publishers.EventInvite, *email, user.ID)
	return a.print(user)
}

func (a *App) runLogout(ctx context.Context, args []string) error {
	fs := newFlagSet("logout")
	jwt := fs.String("jwt", "", "access token (defaults to the cached session's)")
	profile := fs.String("profile", "", "session cache name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	name := profileFor(*profile)
	token, err := a.accessToken(*jwt, name)
	if err != nil {
		return err
	}
	if err := a.client.SignOut(ctx, token); err != nil {
		return err
	}
	if err := a.store.Delete(name); err != nil {
		return fmt.Errorf("forget session %q: %w", name, err)
	}
	a.emit(ctx, publishers.EventLogout, "", session.Subject(token))
	return a.printOK()
}

func (a *App) runUser(ctx context.Context, args []string) error {
	fs := newFlagSet("user")
	jwt := fs.String("jwt", "", "access token (defaults to the cached session's)")
	profile := fs.String("profile", "", "session cache name")
	if err := fs.Parse(args); err != nil {
		return err
	}

	token, err := a.accessToken(*jwt, profileFor(*profile))
	if err != nil {
		return err
	}
	user, err := a.client.GetUser(ctx, token)
	if err != nil {
		return err
	}
	return a.print(user)
}

func (a *App) runUpdateUser(ctx context.Context, args []string) error {
	fs := newFlagSet("update-user")
	jwt := fs.String("jwt", "", "access token (defaults to the cached session's)")
	profile := fs.String("profile", "", "session cache name")
	creds := addCredentialFlags(fs)
	data := fs.StringToString("data", nil, "user metadata as key=value pairs")
	if err := fs.Parse(args); err != nil {
		return err
	}

	token, err := a.accessToken(*jwt, profileFor(*profile))
	if err != nil {
		return err
	}
	password, err := a.password(creds)
	if err != nil {
		return err
	}

	user, err := a.client.UpdateUser(ctx, token, gotrue.UserAttributes{
		Email:    *creds.email,
		Password: password,
		Data:     toData(*data),
	})
	if err != nil {
		return err
	}
	a.emit(ctx, publishers.EventUserUpdate, user.Email, user.ID)
	return a.print(user)
}

func (a *App) runVerify(ctx context.Context, args []string) error {
	fs := newFlagSet("verify")
	typ := fs.String("type", string(gotrue.VerifySignup), "token type: signup, recovery, invite, magiclink")
	token := fs.String("token", "", "token from the email")
	password := fs.String("password", "", "password to set (invite and recovery)")
	redirectTo := fs.String("redirect-to", "", "redirect target")
	profile := fs.String("profile", "", "session cache name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *token == "" {
		return fmt.Errorf("verify: --token is required")
	}

	sess, err := a.client.Verify(ctx, gotrue.VerifyParams{
		Type:       gotrue.VerifyType(*typ),
		Token:      *token,
		Password:   *password,
		RedirectTo: *redirectTo,
	})
	if err != nil {
		return err
	}

	return a.saveSession(ctx, publishers.EventVerify, profileFor(*profile), sess)
}

func (a *App) runAuthorizeURL(_ context.Context, args []string) error {
	fs := newFlagSet("authorize-url")
	provider := fs.String("provider", "", "external provider, e.g. github")
	redirectTo := fs.String("redirect-to", "", "redirect target after login")
	scopes := fs.StringSlice("scopes", nil, "extra provider scopes")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *provider == "" {
		return fmt.Errorf("authorize-url: --provider is required")
	}

	_, err := fmt.Fprintln(a.out, a.client.URLForProviderWith(*provider, gotrue.ProviderOptions{
		RedirectTo: *redirectTo,
		Scopes:     *scopes,
	}))
	return err
}

func (a *App) runSession(_ context.Context, args []string) error {
	fs := newFlagSet("session")
	profile := fs.String("profile", "", "session cache name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	name := profileFor(*profile)

	switch action := fs.Arg(0); action {
	case "", "show":
		entry, err := a.cachedSession(name)
		if err != nil {
			return err
		}
		return a.print(map[string]any{
			"name":       entry.Name,
			"saved_at":   entry.SavedAt,
			"expires_at": entry.ExpiresAt,
			"expired":    entry.Expired(time.Now()),
			"subject":    session.Subject(entry.Session.AccessToken),
			"user":       entry.Session.User,
		})
	case "forget":
		if err := a.store.Delete(name); err != nil {
			return fmt.Errorf("forget session %q: %w", name, err)
		}
		return a.printOK()
	default:
		return fmt.Errorf("session: unknown action %q (want show or forget)", action)
	}
}
