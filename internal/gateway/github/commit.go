package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// CommitFile is one (path, content) pair in a batch commit.
type CommitFile struct {
	Path    string
	Content string
}

type refResponse struct {
	Ref    string `json:"ref"`
	Object struct {
		SHA string `json:"sha"`
	} `json:"object"`
}

type commitResponse struct {
	SHA  string `json:"sha"`
	Tree struct {
		SHA string `json:"sha"`
	} `json:"tree"`
}

// CreateBranch points a new ref at sourceBranch's tip. A ref that
// already exists is a logged no-op: conversions may be retried against
// a branch created by a previous attempt.
func (c *Client) CreateBranch(ctx context.Context, repo *Repository, sourceBranch, targetBranch string) error {
	var ref refResponse
	err := c.get(ctx, fmt.Sprintf("/repos/%s/%s/git/ref/heads/%s", repo.Owner, repo.Name, sourceBranch), &ref)
	if err != nil {
		return fmt.Errorf("resolve branch %s: %w", sourceBranch, err)
	}

	payload := map[string]string{
		"ref": "refs/heads/" + targetBranch,
		"sha": ref.Object.SHA,
	}
	err = c.post(ctx, fmt.Sprintf("/repos/%s/%s/git/refs", repo.Owner, repo.Name), payload, nil, http.StatusCreated)
	if err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnprocessableEntity &&
			strings.Contains(apiErr.Message, "already exists") {
			log.Info().Str("branch", targetBranch).Msg("branch already exists, continuing")
			return nil
		}
		return fmt.Errorf("create branch %s: %w", targetBranch, err)
	}

	log.Info().Str("branch", targetBranch).Str("from", sourceBranch).Msg("created branch")
	return nil
}

// CommitFiles writes the batch as exactly one new commit on branch, or
// not at all. The sequence is read tip -> one blob per file -> one tree
// layered on the tip's tree -> one commit -> fast-forward ref update.
// If the ref moved underneath (concurrent writer), the update is
// rejected and ConcurrentUpdateError is returned; the dangling commit
// is never referenced and the branch is untouched.
func (c *Client) CommitFiles(ctx context.Context, repo *Repository, branch string, files []CommitFile, message string) (string, error) {
	base := fmt.Sprintf("/repos/%s/%s", repo.Owner, repo.Name)

	var ref refResponse
	if err := c.get(ctx, base+"/git/ref/heads/"+branch, &ref); err != nil {
		return "", fmt.Errorf("resolve branch %s: %w", branch, err)
	}
	tipSHA := ref.Object.SHA

	var tipCommit commitResponse
	if err := c.get(ctx, base+"/git/commits/"+tipSHA, &tipCommit); err != nil {
		return "", fmt.Errorf("fetch tip commit: %w", err)
	}

	type treeEntry struct {
		Path string `json:"path"`
		Mode string `json:"mode"`
		Type string `json:"type"`
		SHA  string `json:"sha"`
	}
	entries := make([]treeEntry, 0, len(files))

	for _, f := range files {
		var blob struct {
			SHA string `json:"sha"`
		}
		payload := map[string]string{"content": f.Content, "encoding": "utf-8"}
		if err := c.postObject(ctx, base+"/git/blobs", payload, &blob, http.StatusCreated); err != nil {
			return "", fmt.Errorf("create blob for %s: %w", f.Path, err)
		}
		entries = append(entries, treeEntry{Path: f.Path, Mode: "100644", Type: "blob", SHA: blob.SHA})
	}

	var tree struct {
		SHA string `json:"sha"`
	}
	treePayload := map[string]interface{}{
		"base_tree": tipCommit.Tree.SHA,
		"tree":      entries,
	}
	if err := c.postObject(ctx, base+"/git/trees", treePayload, &tree, http.StatusCreated); err != nil {
		return "", fmt.Errorf("create tree: %w", err)
	}

	var commit struct {
		SHA string `json:"sha"`
	}
	commitPayload := map[string]interface{}{
		"message": message,
		"tree":    tree.SHA,
		"parents": []string{tipSHA},
	}
	if err := c.postObject(ctx, base+"/git/commits", commitPayload, &commit, http.StatusCreated); err != nil {
		return "", fmt.Errorf("create commit: %w", err)
	}

	// Non-force ref update: the remote only accepts a fast-forward, so
	// a ref moved by a concurrent writer is rejected rather than
	// overwritten.
	refPayload := map[string]interface{}{"sha": commit.SHA, "force": false}
	if err := c.patch(ctx, base+"/git/refs/heads/"+branch, refPayload, nil); err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnprocessableEntity {
			return "", &ConcurrentUpdateError{Branch: branch}
		}
		return "", fmt.Errorf("update ref %s: %w", branch, err)
	}

	log.Info().Str("branch", branch).Int("files", len(files)).Str("commit", commit.SHA).Msg("files committed")
	return commit.SHA, nil
}

// CreatePullRequest opens a PR and returns its HTML URL. Remote
// rejections surface as PullRequestError with the remote status and
// message.
func (c *Client) CreatePullRequest(ctx context.Context, repo *Repository, title, body, head, base string) (string, error) {
	payload := map[string]string{
		"title": title,
		"body":  body,
		"head":  head,
		"base":  base,
	}

	var pr struct {
		Number  int    `json:"number"`
		HTMLURL string `json:"html_url"`
	}
	err := c.post(ctx, fmt.Sprintf("/repos/%s/%s/pulls", repo.Owner, repo.Name), payload, &pr, http.StatusCreated)
	if err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) {
			return "", &PullRequestError{StatusCode: apiErr.StatusCode, Message: apiErr.Message}
		}
		return "", err
	}

	log.Info().Int("pr_number", pr.Number).Str("pr_url", pr.HTMLURL).Msg("pull request created")
	return pr.HTMLURL, nil
}
