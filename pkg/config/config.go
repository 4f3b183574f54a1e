package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

var (
	// GithubOrg is the organization whose members may author posts.
	GithubOrg = "msoe-sse"
	// RepoOwner and RepoName identify the Jekyll site repository that posts
	// are committed to.
	RepoOwner = "msoe-sse"
	RepoName  = "msoe-sse.github.io"
	PostsDir  = "_posts"

	// GithubAPIURL is overridable so tests can point the client at a local server.
	GithubAPIURL = "https://api.github.com"

	// UploadsDir holds staged post images before a post is submitted.
	UploadsDir = "./uploads/tmp"
	UploadsURL = "/uploads/tmp"
)

var OauthConf *oauth2.Config

func Init() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found or error loading it.")
	}

	// Helper to get env with default
	getEnv := func(key, fallback string) string {
		if v := os.Getenv(key); v != "" {
			return v
		}
		return fallback
	}

	GithubOrg = getEnv("GITHUB_ORG", "msoe-sse")
	RepoOwner = getEnv("REPO_OWNER", GithubOrg)
	RepoName = getEnv("REPO_NAME", RepoOwner+".github.io")
	PostsDir = getEnv("POSTS_DIR", "_posts")
	GithubAPIURL = getEnv("GITHUB_API_URL", "https://api.github.com")
	UploadsDir = getEnv("UPLOADS_DIR", "./uploads/tmp")

	appURL := getEnv("APP_URL", "http://localhost:8080")
	redirectURL := getEnv("GITHUB_REDIRECT_URL", appURL+"/auth/callback")

	OauthConf = &oauth2.Config{
		ClientID:     os.Getenv("GITHUB_CLIENT_ID"),
		ClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
		Scopes:       []string{"public_repo", "read:org"},
		Endpoint:     github.Endpoint,
		RedirectURL:  redirectURL,
	}
}
