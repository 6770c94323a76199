// YouTube Data API uploader
//
// Uploads use the resumable protocol: a POST with the metadata opens a session
// whose Location header receives the video bytes in a single PUT.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"golang.org/x/oauth2"

	"github.com/desertthunder/autoshorts/internal/models"
	"github.com/desertthunder/autoshorts/internal/shared"
)

const (
	googleAuthURL         = "https://accounts.google.com/o/oauth2/auth"
	googleTokenURL        = "https://oauth2.googleapis.com/token"
	defaultYouTubeBaseURL = "https://www.googleapis.com"
	YouTubeUploadScope    = "https://www.googleapis.com/auth/youtube.upload"
)

// YouTubeOAuthConfig returns the OAuth2 client used for consent and refresh.
func YouTubeOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{YouTubeUploadScope},
		Endpoint: oauth2.Endpoint{
			AuthURL:  googleAuthURL,
			TokenURL: googleTokenURL,
		},
	}
}

// YouTubeUploader implements [Uploader] for YouTube Shorts.
type YouTubeUploader struct {
	cfg        shared.YouTubeConfig
	baseURL    string
	tokenURL   string
	httpClient *http.Client
	sink       CredentialSink
}

// NewYouTubeUploader creates an uploader. Credentials without their own OAuth client use cfg's.
//
// sink, when set, receives refreshed access tokens.
func NewYouTubeUploader(cfg shared.YouTubeConfig, sink CredentialSink, client *http.Client) *YouTubeUploader {
	if client == nil {
		client = &http.Client{Timeout: DefaultHTTPTimeout * 5}
	}
	return &YouTubeUploader{
		cfg:        cfg,
		baseURL:    defaultYouTubeBaseURL,
		tokenURL:   googleTokenURL,
		httpClient: client,
		sink:       sink,
	}
}

// WithEndpoints overrides the API and token URLs.
func (y *YouTubeUploader) WithEndpoints(baseURL, tokenURL string) *YouTubeUploader {
	y.baseURL, y.tokenURL = baseURL, tokenURL
	return y
}

func (y *YouTubeUploader) Platform() models.Platform { return models.YouTube }

type youtubeSnippet struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	CategoryID  string   `json:"categoryId"`
}

type youtubeStatus struct {
	PrivacyStatus string `json:"privacyStatus"`
}

type youtubeVideo struct {
	Snippet youtubeSnippet `json:"snippet"`
	Status  youtubeStatus  `json:"status"`
}

// Upload refreshes the access token and uploads video.
func (y *YouTubeUploader) Upload(ctx context.Context, cred *models.PlatformCredential, video Video) (*PostResult, error) {
	if cred == nil || cred.RefreshToken == "" {
		return nil, fmt.Errorf("%w: youtube refresh token", shared.ErrMissingCredentials)
	}

	client, err := y.authorizedClient(ctx, cred)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(video.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open video: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat video: %w", err)
	}

	api := NewAPIService(y.baseURL, client)
	metadata := youtubeVideo{
		Snippet: youtubeSnippet{
			Title:       video.Title,
			Description: video.Caption,
			Tags:        []string{video.Title, "shorts"},
			CategoryID:  cmpOr(y.cfg.CategoryID, "22"),
		},
		Status: youtubeStatus{PrivacyStatus: cmpOr(y.cfg.PrivacyStatus, "public")},
	}

	initHeaders := http.Header{
		"X-Upload-Content-Type":   {"video/mp4"},
		"X-Upload-Content-Length": {strconv.FormatInt(info.Size(), 10)},
	}
	session, err := api.postJSONWithHeaders(ctx, "/upload/youtube/v3/videos?uploadType=resumable&part=snippet,status", metadata, initHeaders)
	if err != nil {
		return nil, err
	}
	if err := session.Err("youtube"); err != nil {
		return nil, err
	}

	location := session.Headers.Get("Location")
	if location == "" {
		return nil, fmt.Errorf("%w: youtube did not return an upload session", shared.ErrAPIRequest)
	}

	uploadHeaders := http.Header{"Content-Type": {"video/mp4"}}
	resp, err := api.doSized(ctx, http.MethodPut, location, f, info.Size(), uploadHeaders)
	if err != nil {
		return nil, err
	}
	if err := resp.Err("youtube"); err != nil {
		return nil, err
	}

	var uploaded struct {
		ID string `json:"id"`
	}
	if err := resp.Decode(&uploaded); err != nil {
		return nil, err
	}

	return &PostResult{
		Platform: models.YouTube,
		Status:   StatusPosted,
		ID:       uploaded.ID,
		URL:      "https://www.youtube.com/shorts/" + uploaded.ID,
	}, nil
}

// authorizedClient exchanges the refresh token for an access token and returns a client that sends it.
func (y *YouTubeUploader) authorizedClient(ctx context.Context, cred *models.PlatformCredential) (*http.Client, error) {
	conf := YouTubeOAuthConfig(cmpOr(cred.ClientID, y.cfg.ClientID), cmpOr(cred.ClientSecret, y.cfg.ClientSecret), y.cfg.RedirectURI)
	conf.Endpoint.TokenURL = y.tokenURL
	if conf.ClientID == "" || conf.ClientSecret == "" {
		return nil, fmt.Errorf("%w: youtube client id and secret", shared.ErrMissingCredentials)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, y.httpClient)
	// An access token without a known expiry is never reused.
	token := &oauth2.Token{RefreshToken: cred.RefreshToken}
	if cred.Expiry != nil {
		token.AccessToken, token.Expiry = cred.AccessToken, *cred.Expiry
	}

	ts := conf.TokenSource(ctx, token)
	fresh, err := ts.Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil && re.Response.StatusCode == http.StatusBadRequest {
			return nil, fmt.Errorf("%w: youtube refresh token expired or revoked, run credentials youtube-auth again", shared.ErrAuthFailed)
		}
		return nil, fmt.Errorf("%w: youtube token refresh: %v", shared.ErrAuthFailed, err)
	}

	if y.sink != nil && fresh.AccessToken != cred.AccessToken {
		expiry := fresh.Expiry
		update := &models.PlatformCredential{UserID: cred.UserID, Platform: models.YouTube, AccessToken: fresh.AccessToken, Expiry: &expiry}
		if fresh.RefreshToken != "" && fresh.RefreshToken != cred.RefreshToken {
			update.RefreshToken = fresh.RefreshToken
		}
		// A failed write only costs another refresh next time.
		_ = y.sink.Upsert(update)
	}

	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(fresh))
	client.Timeout = y.httpClient.Timeout
	return client, nil
}
