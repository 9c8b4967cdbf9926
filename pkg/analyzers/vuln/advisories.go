package vuln

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/google/go-github/v74/github"
	"golang.org/x/oauth2"

	"github.com/pubguard/engine/pkg/errors"
	"github.com/pubguard/engine/pkg/shared/severity"
)

// Advisory is a platform-published security advisory for the repository.
type Advisory struct {
	ID        string         `json:"id"`
	Summary   string         `json:"summary"`
	Severity  severity.Level `json:"severity"`
	Published time.Time      `json:"published"`
	URL       string         `json:"url,omitempty"`
}

// AdvisorySource lists published security advisories for a repository.
// Hosts without an advisory database return (nil, nil).
type AdvisorySource interface {
	ListAdvisories(ctx context.Context, owner, name string) ([]Advisory, error)
}

// GitHubAdvisorySource reads the repository's published security advisories.
type GitHubAdvisorySource struct {
	client *github.Client
}

// NewGitHubAdvisorySource creates an advisory source. An empty token falls
// back to unauthenticated access.
func NewGitHubAdvisorySource(token string) *GitHubAdvisorySource {
	var client *github.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		client = github.NewClient(oauth2.NewClient(context.Background(), ts))
	} else {
		client = github.NewClient(nil)
	}
	return &GitHubAdvisorySource{client: client}
}

// NewGitHubAdvisorySourceWithClient wraps an existing client, mainly for
// tests pointing at a fake API server.
func NewGitHubAdvisorySourceWithClient(client *github.Client) *GitHubAdvisorySource {
	return &GitHubAdvisorySource{client: client}
}

// ListAdvisories returns published advisories. Repositories without the
// advisory feature enabled return an empty list.
func (s *GitHubAdvisorySource) ListAdvisories(ctx context.Context, owner, name string) ([]Advisory, error) {
	advisories, resp, err := s.client.SecurityAdvisories.ListRepositorySecurityAdvisories(ctx, owner, name, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, mapAdvisoryErr(err)
	}

	out := make([]Advisory, 0, len(advisories))
	for _, a := range advisories {
		if a.GetState() == "draft" {
			continue
		}
		out = append(out, Advisory{
			ID:        a.GetGHSAID(),
			Summary:   a.GetSummary(),
			Severity:  severity.FromString(a.GetSeverity()),
			Published: a.GetPublishedAt().Time,
			URL:       a.GetHTMLURL(),
		})
	}
	return out, nil
}

func mapAdvisoryErr(err error) error {
	var er *github.ErrorResponse
	if stderrors.As(err, &er) && er.Response != nil {
		return &errors.UpstreamError{
			Source:     "github",
			StatusCode: er.Response.StatusCode,
			Message:    er.Message,
		}
	}
	var rl *github.RateLimitError
	if stderrors.As(err, &rl) {
		return errors.E(errors.KindRateLimit, "github.ListAdvisories", "github rate limit exhausted", err)
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return errors.E(errors.KindNetwork, "github.ListAdvisories", "github request failed", err)
}

var _ AdvisorySource = (*GitHubAdvisorySource)(nil)
