package fetchcore

import (
	"context"
	"net/url"
	"os"
	"strings"

	"github.com/google/go-github/v80/github"
	"golang.org/x/oauth2"
)

// githubReadmeFetcher retrieves a package's README straight from its
// GitHub repository when pub.dev's own README tab is thin or missing,
// one more rung on spec.md §4.H's package documentation degradation
// ladder. It is nil whenever GITHUB_TOKEN is unset, so an
// unauthenticated deployment never trips GitHub's anonymous rate
// limit chasing a fallback that was only ever best-effort.
type githubReadmeFetcher struct {
	client *github.Client
}

func newGitHubReadmeFetcher() *githubReadmeFetcher {
	token := os.Getenv("GITHUB_TOKEN")
	if token == "" {
		return nil
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return &githubReadmeFetcher{client: github.NewClient(oauth2.NewClient(context.Background(), ts))}
}

// ownerRepoFromHomepage extracts an owner/repo pair from a pubspec
// homepage or repository URL that points at github.com. ok is false
// for any other host, including gitlab mirrors and bare websites.
func ownerRepoFromHomepage(homepage string) (owner, repo string, ok bool) {
	u, err := url.Parse(homepage)
	if err != nil || u.Hostname() != "github.com" {
		return "", "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), true
}

// Readme fetches a repository's default-branch README as raw
// markdown, for docparser.ParseReadmeMarkdown to extract sections
// from.
func (f *githubReadmeFetcher) Readme(ctx context.Context, owner, repo string) ([]byte, error) {
	readme, _, err := f.client.Repositories.GetReadme(ctx, owner, repo, nil)
	if err != nil {
		return nil, err
	}
	content, err := readme.GetContent()
	if err != nil {
		return nil, err
	}
	return []byte(content), nil
}

// Changelog fetches a repository's CHANGELOG.md, returning nil (not
// an error) when the repo has none.
func (f *githubReadmeFetcher) Changelog(ctx context.Context, owner, repo string) []byte {
	fc, _, _, err := f.client.Repositories.GetContents(ctx, owner, repo, "CHANGELOG.md", nil)
	if err != nil || fc == nil {
		return nil
	}
	content, err := fc.GetContent()
	if err != nil {
		return nil
	}
	return []byte(content)
}
