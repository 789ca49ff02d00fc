package release

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/go-github/v67/github"
	"golang.org/x/oauth2"

	domain "github.com/okarpov/serverkeeper/internal/domain/release"
	"github.com/okarpov/serverkeeper/internal/logger"
)

// Resolver queries the release metadata endpoint for the latest published
// release. It performs a single call per invocation and never retries;
// retry policy, if any, belongs to the caller.
type Resolver struct {
	// client is the GitHub API client used for metadata calls.
	client *github.Client
	// owner is the GitHub account publishing the server.
	owner string
	// repo is the GitHub repository publishing the server.
	repo string
}

// NewResolver creates a resolver for the provided repository coordinates.
// An empty token produces an unauthenticated client, subject to rate limits.
// The timeout bounds each metadata call; metadata payloads are small, so a
// request that outlives it is considered failed.
func NewResolver(token, owner, repo string, timeout time.Duration) *Resolver {
	httpClient := &http.Client{Timeout: timeout}
	if token != "" {
		source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(context.Background(), source)
		httpClient.Timeout = timeout
	}

	client := github.NewClient(httpClient)

	return &Resolver{
		client: client,
		owner:  owner,
		repo:   repo,
	}
}

// FetchLatest returns the descriptor of the latest published release.
// Transport failures surface as *domain.NetworkError (plausibly transient),
// non-success responses as *domain.HTTPStatusError (usually not), and
// structurally incomplete payloads as domain.ErrMalformedRelease.
func (r *Resolver) FetchLatest(ctx context.Context) (*domain.Descriptor, error) {
	rel, _, err := r.client.Repositories.GetLatestRelease(ctx, r.owner, r.repo)
	if err != nil {
		var errResponse *github.ErrorResponse
		if errors.As(err, &errResponse) && errResponse.Response != nil {
			return nil, &domain.HTTPStatusError{
				Code: errResponse.Response.StatusCode,
				URL:  fmt.Sprintf("%s/%s", r.owner, r.repo),
			}
		}

		return nil, &domain.NetworkError{Err: err}
	}

	desc, err := toDescriptor(rel)
	if err != nil {
		return nil, err
	}

	logger.InfoKV(ctx, "Resolved latest release",
		"release", desc.Name, "published_at", desc.PublishedAt, "assets", len(desc.Assets))

	return desc, nil
}

// toDescriptor validates the fetched payload and converts it to the domain
// model. The shape of the response is checked explicitly rather than trusted.
func toDescriptor(rel *github.RepositoryRelease) (*domain.Descriptor, error) {
	if rel == nil {
		return nil, fmt.Errorf("empty response: %w", domain.ErrMalformedRelease)
	}

	name := rel.GetTagName()
	if name == "" {
		name = rel.GetName()
	}

	if name == "" {
		return nil, fmt.Errorf("release without name or tag: %w", domain.ErrMalformedRelease)
	}

	publishedAt := rel.GetPublishedAt()
	if publishedAt.IsZero() {
		return nil, fmt.Errorf("release %s without publication timestamp: %w", name, domain.ErrMalformedRelease)
	}

	assets := make([]domain.Asset, 0, len(rel.Assets))
	for _, asset := range rel.Assets {
		if asset.GetName() == "" || asset.GetBrowserDownloadURL() == "" {
			continue
		}

		assets = append(assets, domain.Asset{
			Name:        asset.GetName(),
			DownloadURL: asset.GetBrowserDownloadURL(),
			Size:        int64(asset.GetSize()),
		})
	}

	return &domain.Descriptor{
		Name:        name,
		ID:          rel.GetID(),
		PublishedAt: publishedAt.Time,
		Assets:      assets,
	}, nil
}
