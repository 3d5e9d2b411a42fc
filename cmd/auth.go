package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/dzdedupe/internal/services"
	"github.com/desertthunder/dzdedupe/internal/shared"
)

// userNamer is implemented by services that know who is logged in.
type userNamer interface {
	UserID() string
	UserName() string
}

func userSuffix(svc services.Service) string {
	u, ok := svc.(userNamer)
	if !ok || u.UserID() == "" {
		return ""
	}
	if u.UserName() == "" {
		return " (user " + u.UserID() + ")"
	}
	return " (" + u.UserName() + ", user " + u.UserID() + ")"
}

// AuthLogin opens the Deezer login page and explains how to hand the session to dzdedupe.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("no-browser") {
		r.writePlain("Sign in at %s\n", shared.DeezerLoginURL)
	} else if err := r.openBrowser(shared.DeezerLoginURL); err != nil {
		r.logger.Warn("failed to open browser", "error", err)
		r.writePlain("Open %s in your browser and sign in\n", shared.DeezerLoginURL)
	} else {
		r.writePlain("Opened %s, sign in there\n", shared.DeezerLoginURL)
	}

	r.writePlainln("Then:")
	r.writePlain("1. Open the browser DevTools Network tab and reload deezer.com\n")
	r.writePlain("2. Right-click any gw-light.php request and choose Copy as cURL\n")
	r.writePlain("3. Save it to a file and run 'dzdedupe setup session --curl-file <file>'\n")
	return r.writePlain("   or export DEEZER_SID with the value of the sid cookie\n")
}

// AuthStatus checks that the configured session is logged in.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("checking auth status")

	if err := r.authenticate(ctx); err != nil {
		r.writePlain("✗ Not authenticated\n")
		return err
	}

	return r.writePlain("✓ Authenticated%s\n", userSuffix(r.service))
}
