package services

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"jekyll-post-editor/pkg/models"
)

// Alerts and notices shown to the user after a submission.
const (
	AlertBlankTitle     = "A post cannot be submitted with a blank title."
	AlertNoAuthor       = "A post cannot be submitted without an author."
	AlertNoContent      = "A post cannot be submitted with no markdown content."
	AlertHeroNotImage   = "The background image url must be an image."
	AlertHeroInvalidURL = "The background image must be a valid URL."

	NoticeSubmitted   = "Post Successfully Submitted"
	AlertSubmitFailed = "Submitting the post to GitHub failed. Please try again."
	AlertEditConflict = "Someone else edited this post while you were working. Reload it and try again."
)

// ContentRepository is the slice of the GitHub client a submission needs.
type ContentRepository interface {
	CreatePost(ctx context.Context, token, postText, title string) error
	EditPost(ctx context.Context, token, postText, title, path string) error
	EditPostInPR(ctx context.Context, token, postText, title, path, ref string) error
}

// PostService validates a submission, renders its document text and routes it
// to exactly one repository operation based on which of path and ref are set.
type PostService struct {
	Repo       ContentRepository
	HTTPClient *http.Client
}

func NewPostService(repo ContentRepository) *PostService {
	return &PostService{
		Repo:       repo,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// SubmitPost runs one submission end to end. A *ValidationError return means
// the user must correct the form; repository errors pass through unchanged so
// the handler can tell a conflict from a generic remote failure.
func (s *PostService) SubmitPost(ctx context.Context, token string, req models.SubmissionRequest) error {
	if err := s.Validate(ctx, req); err != nil {
		return err
	}

	postText := CreateJekyllPostText(req.Markdown, req.Author, req.Title, req.Tags, req.Overlay, req.Hero)

	switch {
	case req.Path == "":
		return s.Repo.CreatePost(ctx, token, postText, req.Title)
	case req.Ref == "":
		return s.Repo.EditPost(ctx, token, postText, req.Title, req.Path)
	default:
		return s.Repo.EditPostInPR(ctx, token, postText, req.Title, req.Path, req.Ref)
	}
}

// Validate applies the submission rules in fixed order; the first failing
// rule decides the alert.
func (s *PostService) Validate(ctx context.Context, req models.SubmissionRequest) error {
	switch {
	case strings.TrimSpace(req.Title) == "":
		return &ValidationError{Message: AlertBlankTitle}
	case strings.TrimSpace(req.Author) == "":
		return &ValidationError{Message: AlertNoAuthor}
	case strings.TrimSpace(req.Markdown) == "":
		return &ValidationError{Message: AlertNoContent}
	}

	if req.Hero != "" {
		u, err := url.ParseRequestURI(req.Hero)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return &ValidationError{Message: AlertHeroInvalidURL}
		}
		if !s.heroResolvesToImage(ctx, req.Hero) {
			return &ValidationError{Message: AlertHeroNotImage}
		}
	}
	return nil
}

// heroResolvesToImage probes the hero URL and checks it serves an image
// content type. An unreachable URL cannot resolve to an image, so any
// transport failure counts as not-an-image.
func (s *PostService) heroResolvesToImage(ctx context.Context, hero string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, hero, nil)
	if err != nil {
		return false
	}
	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false
	}
	return strings.HasPrefix(resp.Header.Get("Content-Type"), "image/")
}
