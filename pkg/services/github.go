package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"jekyll-post-editor/pkg/config"
	"jekyll-post-editor/pkg/models"
)

// GithubService is the client for the site repository on GitHub. Every call
// takes the OAuth access token held in the user's session; the service itself
// carries no credentials.
type GithubService struct {
	HTTPClient *http.Client
	BaseURL    string
	Owner      string
	Repo       string
	PostsDir   string
	Org        string
}

func NewGithubService() *GithubService {
	return &GithubService{
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		BaseURL:    config.GithubAPIURL,
		Owner:      config.RepoOwner,
		Repo:       config.RepoName,
		PostsDir:   config.PostsDir,
		Org:        config.GithubOrg,
	}
}

type contentsEntry struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	SHA     string `json:"sha"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

// GetAllPosts returns every post committed to the main branch.
func (g *GithubService) GetAllPosts(ctx context.Context, token string) ([]models.Post, error) {
	return g.postsOnRef(ctx, token, "")
}

// GetAllPostsInPRForUser returns posts that only exist on pull request
// branches opened by the authenticated user. Each post carries the ref of its
// PR branch so edits go back to the same pull request.
func (g *GithubService) GetAllPostsInPRForUser(ctx context.Context, token string) ([]models.Post, error) {
	login, err := g.currentUserLogin(ctx, token)
	if err != nil {
		return nil, err
	}

	var prs []struct {
		Number int `json:"number"`
		User   struct {
			Login string `json:"login"`
		} `json:"user"`
		Head struct {
			Ref string `json:"ref"`
		} `json:"head"`
	}
	pullsURL := fmt.Sprintf("%s/repos/%s/%s/pulls?state=open", g.BaseURL, g.Owner, g.Repo)
	if err := g.getJSON(ctx, token, pullsURL, &prs); err != nil {
		return nil, err
	}

	var posts []models.Post
	for _, pr := range prs {
		if pr.User.Login != login {
			continue
		}

		var files []struct {
			Filename string `json:"filename"`
			Status   string `json:"status"`
		}
		filesURL := fmt.Sprintf("%s/repos/%s/%s/pulls/%d/files", g.BaseURL, g.Owner, g.Repo, pr.Number)
		if err := g.getJSON(ctx, token, filesURL, &files); err != nil {
			return nil, err
		}

		for _, f := range files {
			if f.Status == "removed" || !g.isPostFile(f.Filename) {
				continue
			}
			_, text, err := g.getFile(ctx, token, f.Filename, pr.Head.Ref)
			if err != nil {
				return nil, err
			}
			post, err := ParsePostText(text)
			if err != nil {
				continue
			}
			post.Path = f.Filename
			post.Ref = pr.Head.Ref
			posts = append(posts, post)
		}
	}
	return posts, nil
}

// GetPostByTitle fetches one post by title from the given branch ref, or from
// the main branch when ref is empty. Returns ErrNotFound when no stored post
// has that title.
func (g *GithubService) GetPostByTitle(ctx context.Context, token, title, ref string) (models.Post, error) {
	posts, err := g.postsOnRef(ctx, token, ref)
	if err != nil {
		return models.Post{}, err
	}
	for _, post := range posts {
		if post.Title == title {
			post.Ref = ref
			return post, nil
		}
	}
	return models.Post{}, ErrNotFound
}

// CreatePost commits a new post file, named after the title, to the main branch.
func (g *GithubService) CreatePost(ctx context.Context, token, postText, title string) error {
	path := g.PostsDir + "/" + PostFilename(title)
	return g.putFile(ctx, token, path, "", "", "Created post "+title, postText)
}

// EditPost overwrites the post at path on the main branch. The file's current
// blob SHA is fetched first and sent as the write precondition so a
// concurrent edit surfaces as ErrConflict instead of being clobbered.
func (g *GithubService) EditPost(ctx context.Context, token, postText, title, path string) error {
	return g.editOnRef(ctx, token, postText, title, path, "")
}

// EditPostInPR is EditPost targeting a pull request branch. The pull request
// itself stays open.
func (g *GithubService) EditPostInPR(ctx context.Context, token, postText, title, path, ref string) error {
	return g.editOnRef(ctx, token, postText, title, path, ref)
}

// CheckAccessToken reports whether the session's token is still accepted by GitHub.
func (g *GithubService) CheckAccessToken(ctx context.Context, token string) bool {
	var user struct {
		Login string `json:"login"`
	}
	return g.getJSON(ctx, token, g.BaseURL+"/user", &user) == nil
}

// CheckOrgMembership reports whether the authenticated user belongs to the
// site's GitHub organization.
func (g *GithubService) CheckOrgMembership(ctx context.Context, token string) (bool, error) {
	login, err := g.currentUserLogin(ctx, token)
	if err != nil {
		return false, err
	}

	memberURL := fmt.Sprintf("%s/orgs/%s/members/%s", g.BaseURL, g.Org, login)
	resp, err := g.doRequest(ctx, token, http.MethodGet, memberURL, nil)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRemoteRead, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent:
		return true, nil
	case http.StatusNotFound, http.StatusFound:
		return false, nil
	default:
		return false, remoteStatusError(ErrRemoteRead, "membership check", resp.StatusCode)
	}
}

func (g *GithubService) editOnRef(ctx context.Context, token, postText, title, path, ref string) error {
	entry, _, err := g.getFile(ctx, token, path, ref)
	if err != nil {
		return err
	}
	return g.putFile(ctx, token, path, ref, entry.SHA, "Edited post "+title, postText)
}

func (g *GithubService) postsOnRef(ctx context.Context, token, ref string) ([]models.Post, error) {
	listURL := g.contentsURL(g.PostsDir, ref)
	var entries []contentsEntry
	if err := g.getJSON(ctx, token, listURL, &entries); err != nil {
		return nil, err
	}

	var posts []models.Post
	for _, entry := range entries {
		if entry.Type != "file" || !strings.HasSuffix(entry.Name, ".md") {
			continue
		}
		_, text, err := g.getFile(ctx, token, entry.Path, ref)
		if err != nil {
			return nil, err
		}
		post, err := ParsePostText(text)
		if err != nil {
			// Not every file in the posts directory is a well formed post.
			continue
		}
		post.Path = entry.Path
		posts = append(posts, post)
	}
	return posts, nil
}

func (g *GithubService) getFile(ctx context.Context, token, path, ref string) (*contentsEntry, []byte, error) {
	resp, err := g.doRequest(ctx, token, http.MethodGet, g.contentsURL(path, ref), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrRemoteRead, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	default:
		return nil, nil, remoteStatusError(ErrRemoteRead, "fetch "+path, resp.StatusCode)
	}

	var entry contentsEntry
	if err := json.NewDecoder(resp.Body).Decode(&entry); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrRemoteRead, err)
	}

	// The contents API wraps base64 payloads at 60 columns.
	raw, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(entry.Content, "\n", ""))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: decode %s: %v", ErrRemoteRead, path, err)
	}
	return &entry, raw, nil
}

func (g *GithubService) putFile(ctx context.Context, token, path, branch, sha, message, content string) error {
	body := map[string]string{
		"message": message,
		"content": base64.StdEncoding.EncodeToString([]byte(content)),
	}
	if branch != "" {
		body["branch"] = branch
	}
	if sha != "" {
		body["sha"] = sha
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteWrite, err)
	}

	putURL := fmt.Sprintf("%s/repos/%s/%s/contents/%s", g.BaseURL, g.Owner, g.Repo, path)
	resp, err := g.doRequest(ctx, token, http.MethodPut, putURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteWrite, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated:
		return nil
	case http.StatusConflict, http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", ErrConflict, path)
	default:
		return remoteStatusError(ErrRemoteWrite, "commit "+path, resp.StatusCode)
	}
}

func (g *GithubService) currentUserLogin(ctx context.Context, token string) (string, error) {
	var user struct {
		Login string `json:"login"`
	}
	if err := g.getJSON(ctx, token, g.BaseURL+"/user", &user); err != nil {
		return "", err
	}
	return user.Login, nil
}

func (g *GithubService) getJSON(ctx context.Context, token, rawURL string, out any) error {
	resp, err := g.doRequest(ctx, token, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRemoteRead, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrNotFound, rawURL)
	}
	if resp.StatusCode != http.StatusOK {
		return remoteStatusError(ErrRemoteRead, rawURL, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (g *GithubService) contentsURL(path, ref string) string {
	u := fmt.Sprintf("%s/repos/%s/%s/contents/%s", g.BaseURL, g.Owner, g.Repo, path)
	if ref != "" {
		u += "?ref=" + url.QueryEscape(ref)
	}
	return u
}

func (g *GithubService) doRequest(ctx context.Context, token, method, rawURL string, body *bytes.Reader) (*http.Response, error) {
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, rawURL, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, rawURL, nil)
	}
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return g.HTTPClient.Do(req)
}

func (g *GithubService) isPostFile(path string) bool {
	return strings.HasPrefix(path, g.PostsDir+"/") && strings.HasSuffix(path, ".md")
}
