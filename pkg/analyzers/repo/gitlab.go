package repo

import (
	"context"
	stderrors "errors"
	"net/http"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/pubguard/engine/pkg/errors"
)

// GitLabHost reads project metadata through the GitLab REST API.
type GitLabHost struct {
	client *gitlab.Client
}

// NewGitLabHost creates a GitLab host. An empty token falls back to
// unauthenticated access to public projects.
func NewGitLabHost(token string) (*GitLabHost, error) {
	client, err := gitlab.NewClient(token)
	if err != nil {
		return nil, errors.E(errors.KindInternal, "gitlab.NewHost", "create client", err)
	}
	return &GitLabHost{client: client}, nil
}

// NewGitLabHostWithClient creates a GitLab host over an existing client,
// mainly for tests pointing at a fake API server.
func NewGitLabHostWithClient(client *gitlab.Client) *GitLabHost {
	return &GitLabHost{client: client}
}

// Name returns "gitlab".
func (h *GitLabHost) Name() string {
	return "gitlab"
}

func pid(owner, name string) string {
	return owner + "/" + name
}

// Snapshot fetches project metadata.
func (h *GitLabHost) Snapshot(ctx context.Context, owner, name string) (*Snapshot, error) {
	p, _, err := h.client.Projects.GetProject(pid(owner, name), &gitlab.GetProjectOptions{
		License: gitlab.Ptr(true),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, mapGitLabErr("gitlab.Snapshot", err)
	}

	s := &Snapshot{
		Description:   p.Description,
		Stars:         p.StarCount,
		Forks:         p.ForksCount,
		OpenIssues:    p.OpenIssuesCount,
		Archived:      p.Archived,
		Topics:        p.Topics,
		DefaultBranch: p.DefaultBranch,
	}
	if p.CreatedAt != nil {
		s.CreatedAt = *p.CreatedAt
	}
	if p.LastActivityAt != nil {
		s.PushedAt = *p.LastActivityAt
	}
	if p.License != nil {
		s.License = p.License.Name
	}
	return s, nil
}

// ContributorCount counts repository contributors.
func (h *GitLabHost) ContributorCount(ctx context.Context, owner, name string) (int, error) {
	opts := &gitlab.ListContributorsOptions{
		ListOptions: gitlab.ListOptions{PerPage: 1},
	}
	contributors, resp, err := h.client.Repositories.Contributors(pid(owner, name), opts, gitlab.WithContext(ctx))
	if err != nil {
		return 0, mapGitLabErr("gitlab.ContributorCount", err)
	}
	if resp.TotalItems > 0 {
		return resp.TotalItems, nil
	}
	return len(contributors), nil
}

// FileContent fetches a raw file from the default branch. Missing files
// return ("", nil).
func (h *GitLabHost) FileContent(ctx context.Context, owner, name, path string) (string, error) {
	data, resp, err := h.client.RepositoryFiles.GetRawFile(pid(owner, name), path,
		&gitlab.GetRawFileOptions{}, gitlab.WithContext(ctx))
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return "", nil
		}
		return "", mapGitLabErr("gitlab.FileContent", err)
	}
	return string(data), nil
}

// RecentCommits lists the most recent commits on the default branch.
func (h *GitLabHost) RecentCommits(ctx context.Context, owner, name string, limit int) ([]Commit, error) {
	opts := &gitlab.ListCommitsOptions{
		ListOptions: gitlab.ListOptions{PerPage: limit},
	}
	commits, _, err := h.client.Commits.ListCommits(pid(owner, name), opts, gitlab.WithContext(ctx))
	if err != nil {
		return nil, mapGitLabErr("gitlab.RecentCommits", err)
	}

	out := make([]Commit, 0, len(commits))
	for _, c := range commits {
		commit := Commit{Message: c.Message}
		if c.CommittedDate != nil {
			commit.Date = *c.CommittedDate
		}
		out = append(out, commit)
	}
	return out, nil
}

// OpenSecurityIssues counts open issues carrying a security label.
func (h *GitLabHost) OpenSecurityIssues(ctx context.Context, owner, name string) (int, error) {
	labels := gitlab.LabelOptions{"security"}
	opts := &gitlab.ListProjectIssuesOptions{
		Labels:      &labels,
		State:       gitlab.Ptr("opened"),
		ListOptions: gitlab.ListOptions{PerPage: 1},
	}
	issues, resp, err := h.client.Issues.ListProjectIssues(pid(owner, name), opts, gitlab.WithContext(ctx))
	if err != nil {
		return 0, mapGitLabErr("gitlab.OpenSecurityIssues", err)
	}
	if resp.TotalItems > 0 {
		return resp.TotalItems, nil
	}
	return len(issues), nil
}

// mapGitLabErr folds client-go errors onto the engine taxonomy.
func mapGitLabErr(op string, err error) error {
	var er *gitlab.ErrorResponse
	if stderrors.As(err, &er) && er.Response != nil {
		return &errors.UpstreamError{
			Source:     "gitlab",
			StatusCode: er.Response.StatusCode,
			Message:    er.Message,
		}
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return errors.E(errors.KindNetwork, op, "gitlab request failed", err)
}

var _ Host = (*GitLabHost)(nil)
