package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/autoshorts/internal/models"
	"github.com/desertthunder/autoshorts/internal/shared"
)

// PostStatus is the outcome of publishing to one platform.
type PostStatus string

const (
	StatusPosted  PostStatus = "posted"
	StatusSkipped PostStatus = "skipped"
	StatusFailed  PostStatus = "failed"
)

// PostResult reports one platform's outcome.
type PostResult struct {
	Platform models.Platform `json:"platform"`
	Status   PostStatus      `json:"status"`
	ID       string          `json:"id,omitempty"`
	URL      string          `json:"url,omitempty"`
	Reason   string          `json:"reason,omitempty"`
	Err      error           `json:"-"`
}

// Publisher fans a finished video out to every platform a user has credentials for.
//
// Platforms are independent. A failure on one never prevents the others.
type Publisher struct {
	creds     CredentialSource
	uploaders map[models.Platform]Uploader
	logger    *log.Logger
}

// NewPublisher creates a publisher over the given uploaders.
func NewPublisher(creds CredentialSource, logger *log.Logger, uploaders ...Uploader) *Publisher {
	p := &Publisher{creds: creds, uploaders: make(map[models.Platform]Uploader), logger: logger}
	for _, u := range uploaders {
		if u != nil {
			p.uploaders[u.Platform()] = u
		}
	}
	return p
}

// Publish posts video for userID on every platform in [models.Platforms] order.
func (p *Publisher) Publish(ctx context.Context, userID int64, video Video) []PostResult {
	results := make([]PostResult, 0, len(models.Platforms))
	for _, platform := range models.Platforms {
		res := p.publishOne(ctx, userID, platform, video)
		switch res.Status {
		case StatusFailed:
			p.logger.Error("publish failed", "user", userID, "platform", platform, "error", res.Err)
		case StatusSkipped:
			p.logger.Info("publish skipped", "user", userID, "platform", platform, "reason", res.Reason)
		default:
			p.logger.Info("published", "user", userID, "platform", platform, "id", res.ID)
		}
		results = append(results, res)
	}
	return results
}

func (p *Publisher) publishOne(ctx context.Context, userID int64, platform models.Platform, video Video) PostResult {
	skip := func(reason string) PostResult {
		return PostResult{Platform: platform, Status: StatusSkipped, Reason: reason}
	}

	cred, err := p.creds.Get(userID, platform)
	switch {
	case errors.Is(err, shared.ErrMissingCredentials):
		return skip("no credentials")
	case err != nil:
		return PostResult{Platform: platform, Status: StatusFailed, Err: err, Reason: err.Error()}
	}

	uploader, ok := p.uploaders[platform]
	if !ok {
		return skip(fmt.Sprintf("%s uploads are not supported", platform))
	}

	res, err := uploader.Upload(ctx, cred, video)
	if errors.Is(err, shared.ErrMissingCredentials) {
		return skip(err.Error())
	}
	if err != nil {
		return PostResult{Platform: platform, Status: StatusFailed, Err: err, Reason: err.Error()}
	}
	return *res
}

// Summary counts results by status.
func Summary(results []PostResult) map[PostStatus]int {
	counts := make(map[PostStatus]int, 3)
	for _, r := range results {
		counts[r.Status]++
	}
	return counts
}
