package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"

	"github.com/desertthunder/autoshorts/internal/models"
	"github.com/desertthunder/autoshorts/internal/server"
	"github.com/desertthunder/autoshorts/internal/services"
	"github.com/desertthunder/autoshorts/internal/shared"
)

// SetCredentials merges the given fields into a user's stored credential for one platform.
func (r *Runner) SetCredentials(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireCipher(); err != nil {
		return err
	}
	platform, err := models.ParsePlatform(cmd.String("platform"))
	if err != nil {
		return err
	}

	cred := &models.PlatformCredential{
		UserID:        cmd.Int64("user"),
		Platform:      platform,
		AccessToken:   cmd.String("access-token"),
		RefreshToken:  cmd.String("refresh-token"),
		ClientID:      cmd.String("client-id"),
		ClientSecret:  cmd.String("client-secret"),
		LoginUsername: cmd.String("login-username"),
		LoginPassword: cmd.String("login-password"),
		AccountID:     cmd.String("account-id"),
	}
	if !anySet(cred.Redacted()) && cred.AccountID == "" {
		return fmt.Errorf("%w: set at least one credential field", shared.ErrMissingArgument)
	}

	store, err := r.openStore()
	if err != nil {
		return err
	}
	if err := store.Credentials.Upsert(cred); err != nil {
		return err
	}
	r.logger.Info("credentials saved", "user", cred.UserID, "platform", platform)
	return nil
}

// ShowCredentials prints which fields are set per platform. Secret values are never printed.
func (r *Runner) ShowCredentials(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireCipher(); err != nil {
		return err
	}
	store, err := r.openStore()
	if err != nil {
		return err
	}

	creds, err := store.Credentials.ListByUser(cmd.Int64("user"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		type credView struct {
			*models.PlatformCredential
			Set map[string]bool `json:"set"`
		}
		views := make([]credView, len(creds))
		for i, c := range creds {
			views[i] = credView{PlatformCredential: c, Set: c.Redacted()}
		}
		return r.writeJSON(views, cmd.Bool("pretty"))
	}

	if len(creds) == 0 {
		return r.writePlain("No credentials stored.\n")
	}
	for _, c := range creds {
		r.writePlain("%-9s %s\n", c.Platform+":", formatRedacted(c))
	}
	return nil
}

// DeleteCredentials removes a user's credential for one platform.
func (r *Runner) DeleteCredentials(ctx context.Context, cmd *cli.Command) error {
	platform, err := models.ParsePlatform(cmd.String("platform"))
	if err != nil {
		return err
	}
	store, err := r.openStore()
	if err != nil {
		return err
	}

	if err := store.Credentials.Delete(cmd.Int64("user"), platform); err != nil {
		return err
	}
	r.logger.Info("credentials deleted", "user", cmd.Int64("user"), "platform", platform)
	return nil
}

// ImportCookies stores the session cookies of a browser "Copy as cURL" command.
func (r *Runner) ImportCookies(ctx context.Context, cmd *cli.Command) error {
	curlCmd := cmd.String("curl")
	curlFile := cmd.String("curl-file")

	if curlCmd == "" && curlFile == "" {
		return fmt.Errorf("%w: either --curl or --curl-file must be provided", shared.ErrMissingArgument)
	}
	if curlCmd != "" && curlFile != "" {
		return fmt.Errorf("%w: cannot specify both --curl and --curl-file", shared.ErrInvalidArgument)
	}
	if err := r.requireCipher(); err != nil {
		return err
	}
	platform, err := models.ParsePlatform(cmd.String("platform"))
	if err != nil {
		return err
	}

	var curlHeaders *shared.CurlHeaders
	if curlFile != "" {
		curlHeaders, err = shared.ParseCurlFile(curlFile)
		if err != nil {
			return fmt.Errorf("failed to parse cURL file: %w", err)
		}
		r.logger.Info("parsed cURL from file", "file", curlFile)
	} else {
		curlHeaders, err = shared.ParseCurlCommand([]byte(curlCmd))
		if err != nil {
			return fmt.Errorf("failed to parse cURL command: %w", err)
		}
		r.logger.Info("parsed cURL command")
	}

	cookies, err := curlHeaders.CookiesJSON()
	if err != nil {
		return err
	}

	store, err := r.openStore()
	if err != nil {
		return err
	}
	cred := &models.PlatformCredential{UserID: cmd.Int64("user"), Platform: platform, Cookies: cookies}
	if err := store.Credentials.Upsert(cred); err != nil {
		return err
	}
	r.logger.Info("session cookies stored", "user", cred.UserID, "platform", platform, "cookies", len(curlHeaders.Cookies()))
	return nil
}

// YouTubeAuth runs the OAuth2 consent flow in the browser and stores the resulting tokens.
//
// A client ID and secret stored for the user take precedence over the ones in config.
func (r *Runner) YouTubeAuth(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireCipher(); err != nil {
		return err
	}
	store, err := r.openStore()
	if err != nil {
		return err
	}

	userID := cmd.Int64("user")
	if _, err := store.Users.Get(userID); err != nil {
		return err
	}

	clientID, clientSecret := r.config.YouTube.ClientID, r.config.YouTube.ClientSecret
	if existing, err := store.Credentials.Get(userID, models.YouTube); err == nil {
		if existing.ClientID != "" && existing.ClientSecret != "" {
			clientID, clientSecret = existing.ClientID, existing.ClientSecret
		}
	} else if !errors.Is(err, shared.ErrMissingCredentials) {
		return err
	}
	if clientID == "" || clientSecret == "" {
		return fmt.Errorf("%w: youtube client_id and client_secret are required in config or credentials", shared.ErrMissingCredentials)
	}

	redirect, err := url.Parse(r.config.YouTube.RedirectURI)
	if err != nil || redirect.Host == "" {
		return fmt.Errorf("%w: invalid youtube redirect_uri %q", shared.ErrConfig, r.config.YouTube.RedirectURI)
	}

	state, err := shared.GenerateState()
	if err != nil {
		return err
	}

	oauthConfig := services.YouTubeOAuthConfig(clientID, clientSecret, redirect.String())
	handler := server.NewOAuthHandler(oauthConfig, state, func(ctx context.Context, token *oauth2.Token) error {
		cred := &models.PlatformCredential{
			UserID:       userID,
			Platform:     models.YouTube,
			AccessToken:  token.AccessToken,
			RefreshToken: token.RefreshToken,
			ClientID:     clientID,
			ClientSecret: clientSecret,
		}
		if !token.Expiry.IsZero() {
			expiry := token.Expiry
			cred.Expiry = &expiry
		}
		return store.Credentials.Upsert(cred)
	})

	router := server.NewBasicRouter()
	router.Use(server.Recover(r.logger), server.RequestLogger(r.logger))
	router.Handler(handler)

	serveCtx, stop := context.WithCancel(ctx)
	defer stop()
	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.Serve(serveCtx, server.New(redirect.Host, router), r.logger)
	}()

	authURL := handler.AuthCodeURL()
	r.writePlain("Opening browser for YouTube authorization...\n")
	r.writePlain("If the browser does not open, visit:\n%s\n", authURL)
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warn("failed to open browser", "error", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, cmd.Duration("timeout"))
	defer cancel()

	_, err = handler.Wait(waitCtx)
	stop()
	if serr := <-srvErr; serr != nil {
		r.logger.Warn("callback server error", "error", serr)
	}
	if err != nil {
		return err
	}

	r.logger.Info("youtube authorized", "user", userID)
	return r.writePlain("YouTube connected for user %d\n", userID)
}

func anySet(fields map[string]bool) bool {
	for _, set := range fields {
		if set {
			return true
		}
	}
	return false
}
