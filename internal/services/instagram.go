// Instagram Graph API uploader
//
// Reels are published from a public URL, so the video is first put in an
// object store and handed to the Graph API as a presigned link.
package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path"
	"time"

	"github.com/desertthunder/autoshorts/internal/models"
	"github.com/desertthunder/autoshorts/internal/shared"
)

const defaultGraphURL = "https://graph.facebook.com/v23.0"

// InstagramUploader implements [Uploader] for Instagram Reels.
type InstagramUploader struct {
	api          *APIService
	store        ObjectStore
	expiry       time.Duration
	pollInterval time.Duration
	pollAttempts int
}

// NewInstagramUploader creates an uploader that stages videos in store.
func NewInstagramUploader(cfg shared.InstagramConfig, store ObjectStore, expiry time.Duration, client *http.Client) *InstagramUploader {
	u := &InstagramUploader{
		api:          NewAPIService(cmpOr(cfg.GraphURL, defaultGraphURL), client),
		store:        store,
		expiry:       expiry,
		pollInterval: cfg.PollInterval,
		pollAttempts: cfg.PollAttempts,
	}
	if u.expiry <= 0 {
		u.expiry = time.Hour
	}
	if u.pollInterval <= 0 {
		u.pollInterval = 5 * time.Second
	}
	if u.pollAttempts <= 0 {
		u.pollAttempts = 24
	}
	return u
}

func (u *InstagramUploader) Platform() models.Platform { return models.Instagram }

// Upload stages the video, creates a REELS container, waits for it to finish processing and publishes it.
func (u *InstagramUploader) Upload(ctx context.Context, cred *models.PlatformCredential, video Video) (*PostResult, error) {
	if cred == nil || cred.AccessToken == "" || cred.AccountID == "" {
		return nil, fmt.Errorf("%w: instagram access token and account id", shared.ErrMissingCredentials)
	}
	if u.store == nil {
		return nil, fmt.Errorf("%w: instagram requires an object store", shared.ErrConfig)
	}

	videoURL, key, err := u.stage(ctx, video.Path)
	if err != nil {
		return nil, err
	}
	defer u.store.Delete(context.WithoutCancel(ctx), key)

	resp, err := u.api.PostForm(ctx, "/"+url.PathEscape(cred.AccountID)+"/media", url.Values{
		"media_type":   {"REELS"},
		"video_url":    {videoURL},
		"caption":      {video.Caption},
		"access_token": {cred.AccessToken},
	})
	if err != nil {
		return nil, err
	}
	if err := resp.Err("instagram"); err != nil {
		return nil, err
	}

	var container struct {
		ID string `json:"id"`
	}
	if err := resp.Decode(&container); err != nil {
		return nil, err
	}
	if container.ID == "" {
		return nil, fmt.Errorf("%w: instagram returned no container id", shared.ErrAPIRequest)
	}

	if err := u.waitFinished(ctx, container.ID, cred.AccessToken); err != nil {
		return nil, err
	}

	resp, err = u.api.PostForm(ctx, "/"+url.PathEscape(cred.AccountID)+"/media_publish", url.Values{
		"creation_id":  {container.ID},
		"access_token": {cred.AccessToken},
	})
	if err != nil {
		return nil, err
	}
	if err := resp.Err("instagram"); err != nil {
		return nil, err
	}

	var published struct {
		ID string `json:"id"`
	}
	if err := resp.Decode(&published); err != nil {
		return nil, err
	}

	return &PostResult{Platform: models.Instagram, Status: StatusPosted, ID: published.ID}, nil
}

func (u *InstagramUploader) stage(ctx context.Context, videoPath string) (string, string, error) {
	f, err := os.Open(videoPath)
	if err != nil {
		return "", "", fmt.Errorf("failed to open video: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", "", fmt.Errorf("failed to stat video: %w", err)
	}

	key := path.Join("reels", shared.GenerateID()+".mp4")
	if err := u.store.Put(ctx, key, f, info.Size(), "video/mp4"); err != nil {
		return "", "", fmt.Errorf("%w: stage video: %v", shared.ErrAPIRequest, err)
	}

	link, err := u.store.PresignGet(ctx, key, u.expiry)
	if err != nil {
		return "", "", fmt.Errorf("%w: presign video: %v", shared.ErrAPIRequest, err)
	}
	return link, key, nil
}

// waitFinished polls the container's status_code until FINISHED.
func (u *InstagramUploader) waitFinished(ctx context.Context, containerID, token string) error {
	ticker := time.NewTicker(u.pollInterval)
	defer ticker.Stop()

	q := url.Values{"fields": {"status_code"}, "access_token": {token}}
	for range u.pollAttempts {
		resp, err := u.api.Get(ctx, "/"+url.PathEscape(containerID)+"?"+q.Encode())
		if err != nil {
			return err
		}
		if err := resp.Err("instagram"); err != nil {
			return err
		}

		var status struct {
			StatusCode string `json:"status_code"`
		}
		if err := resp.Decode(&status); err != nil {
			return err
		}

		switch status.StatusCode {
		case "FINISHED", "PUBLISHED":
			return nil
		case "ERROR", "EXPIRED":
			return fmt.Errorf("%w: instagram container %s is %s", shared.ErrAPIRequest, containerID, status.StatusCode)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: waiting for instagram container: %v", shared.ErrTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
	return fmt.Errorf("%w: instagram container %s did not finish processing", shared.ErrTimeout, containerID)
}
