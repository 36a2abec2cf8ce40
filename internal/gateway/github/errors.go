package github

import "fmt"

// NotFoundError indicates the repository does not exist or the
// credential cannot read it.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found: %s", e.Resource)
}

// DecodeError indicates file content that could not be decoded as UTF-8.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ConcurrentUpdateError indicates the branch ref moved between reading
// the tip and updating it; the commit was not applied.
type ConcurrentUpdateError struct {
	Branch string
}

func (e *ConcurrentUpdateError) Error() string {
	return fmt.Sprintf("branch %s was updated concurrently", e.Branch)
}

// PullRequestError carries the remote rejection of a pull-request
// creation (no diff, branch protection, permissions).
type PullRequestError struct {
	StatusCode int
	Message    string
}

func (e *PullRequestError) Error() string {
	return fmt.Sprintf("pull request rejected (status %d): %s", e.StatusCode, e.Message)
}

// apiError is the generic remote failure for non-contract status codes.
type apiError struct {
	StatusCode int
	Message    string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("github api error (status %d): %s", e.StatusCode, e.Message)
}
