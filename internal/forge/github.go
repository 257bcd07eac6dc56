package forge

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/go-github/v60/github"
	"github.com/rs/zerolog/log"

	"github.com/iemarjay/reviewbot/internal/domain"
)

// GitHubClient implements Client against the GitHub App REST API.
type GitHubClient struct {
	appID      int64
	privateKey []byte

	mu             sync.Mutex
	tokensByInstID map[int64]cachedToken
	instIDByRepo   map[string]int64
}

type cachedToken struct {
	token     string
	expiresAt time.Time
}

// NewGitHubClient builds a GitHubClient for the given App.
func NewGitHubClient(appID int64, privateKey []byte) *GitHubClient {
	return &GitHubClient{
		appID:          appID,
		privateKey:     privateKey,
		tokensByInstID: make(map[int64]cachedToken),
		instIDByRepo:   make(map[string]int64),
	}
}

func (c *GitHubClient) createJWT() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
		Issuer:    fmt.Sprintf("%d", c.appID),
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM(c.privateKey)
	if err != nil {
		return "", fmt.Errorf("parse app private key: %w", err)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(key)
}

func (c *GitHubClient) appClient() (*github.Client, error) {
	jwtToken, err := c.createJWT()
	if err != nil {
		return nil, err
	}
	httpClient := &http.Client{Transport: &bearerTransport{token: jwtToken}}
	return github.NewClient(httpClient), nil
}

// MintInstallationToken returns a cached token if it has more than a
// minute of life left, otherwise mints a fresh one.
func (c *GitHubClient) MintInstallationToken(ctx context.Context, installationID int64) (string, error) {
	c.mu.Lock()
	if cached, ok := c.tokensByInstID[installationID]; ok && time.Until(cached.expiresAt) > time.Minute {
		c.mu.Unlock()
		return cached.token, nil
	}
	c.mu.Unlock()

	appClient, err := c.appClient()
	if err != nil {
		return "", err
	}

	tok, _, err := appClient.Apps.CreateInstallationToken(ctx, installationID, nil)
	if err != nil {
		return "", fmt.Errorf("create installation token: %w", err)
	}

	c.mu.Lock()
	c.tokensByInstID[installationID] = cachedToken{token: tok.GetToken(), expiresAt: tok.GetExpiresAt().Time}
	c.mu.Unlock()

	return tok.GetToken(), nil
}

func (c *GitHubClient) installationREST(ctx context.Context, installationID int64) (*github.Client, error) {
	token, err := c.MintInstallationToken(ctx, installationID)
	if err != nil {
		return nil, err
	}
	httpClient := &http.Client{Transport: &bearerTransport{token: token}}
	return github.NewClient(httpClient), nil
}

// PublishReview posts a review with the given verdict and inline
// comments, mapping domain.Verdict to GitHub's review event.
func (c *GitHubClient) PublishReview(ctx context.Context, repoFullName string, prNumber int, commitSHA string, verdict domain.Verdict, summary string, comments []ReviewComment) error {
	owner, repo, err := splitFullName(repoFullName)
	if err != nil {
		return err
	}

	// installationID isn't threaded through this call, so the repo's
	// installation is resolved by installationClientForRepo (cached per
	// repo after its first lookup); the token for that installation comes
	// from MintInstallationToken's per-installation cache.
	client, err := c.installationClientForRepo(ctx, owner, repo)
	if err != nil {
		return err
	}

	draftComments := make([]*github.DraftReviewComment, 0, len(comments))
	for _, cm := range comments {
		draftComments = append(draftComments, &github.DraftReviewComment{
			Path: github.String(cm.Path),
			Line: github.Int(cm.Line),
			Body: github.String(cm.Body),
		})
	}

	review := &github.PullRequestReviewRequest{
		CommitID: github.String(commitSHA),
		Body:     github.String(summary),
		Event:    github.String(reviewEvent(verdict)),
		Comments: draftComments,
	}

	_, _, err = client.PullRequests.CreateReview(ctx, owner, repo, prNumber, review)
	if err != nil {
		return fmt.Errorf("create review: %w", err)
	}

	log.Info().
		Str("repo", repoFullName).
		Int("pr", prNumber).
		Str("verdict", string(verdict)).
		Int("comments", len(comments)).
		Msg("published review")

	return nil
}

// installationClientForRepo looks up the repo's installation ID via the
// Apps API on first use and caches it per repo; later calls reuse the
// cached ID.
func (c *GitHubClient) installationClientForRepo(ctx context.Context, owner, repo string) (*github.Client, error) {
	fullName := owner + "/" + repo

	c.mu.Lock()
	instID, cached := c.instIDByRepo[fullName]
	c.mu.Unlock()
	if cached {
		return c.installationREST(ctx, instID)
	}

	appClient, err := c.appClient()
	if err != nil {
		return nil, err
	}

	installation, _, err := appClient.Apps.FindRepositoryInstallation(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("find installation for %s/%s: %w", owner, repo, err)
	}

	c.mu.Lock()
	c.instIDByRepo[fullName] = installation.GetID()
	c.mu.Unlock()

	return c.installationREST(ctx, installation.GetID())
}

func reviewEvent(v domain.Verdict) string {
	switch v {
	case domain.VerdictApprove:
		return "APPROVE"
	case domain.VerdictRequestChanges:
		return "REQUEST_CHANGES"
	default:
		return "COMMENT"
	}
}

func splitFullName(repoFullName string) (owner, repo string, err error) {
	for i := 0; i < len(repoFullName); i++ {
		if repoFullName[i] == '/' {
			return repoFullName[:i], repoFullName[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("repoFullName %q missing '/' separator", repoFullName)
}

// bearerTransport adds a Bearer token to every request, used for both
// JWT app auth and installation token auth.
type bearerTransport struct {
	token string
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", "Bearer "+t.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	return http.DefaultTransport.RoundTrip(req)
}
