package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jekyll-post-editor/pkg/models"
)

func newTestGithubService(srv *httptest.Server) *GithubService {
	return &GithubService{
		HTTPClient: srv.Client(),
		BaseURL:    srv.URL,
		Owner:      "msoe-sse",
		Repo:       "msoe-sse.github.io",
		PostsDir:   "_posts",
		Org:        "msoe-sse",
	}
}

func contentsJSON(t *testing.T, name, path, sha, text string) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]string{
		"name":    name,
		"path":    path,
		"sha":     sha,
		"type":    "file",
		"content": base64.StdEncoding.EncodeToString([]byte(text)),
	})
	require.NoError(t, err)
	return payload
}

func samplePostText(title string) string {
	return RenderPostText(models.Post{
		Title:    title,
		Author:   "author",
		Overlay:  "red",
		Contents: "# hello",
	})
}

func TestGetPostByTitleFindsPostOnMain(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/msoe-sse/msoe-sse.github.io/contents/_posts", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"name":"2018-01-01-some-post.md","path":"_posts/2018-01-01-some-post.md","sha":"abc","type":"file"}]`)
	})
	mux.HandleFunc("/repos/msoe-sse/msoe-sse.github.io/contents/_posts/2018-01-01-some-post.md", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		w.Write(contentsJSON(t, "2018-01-01-some-post.md", "_posts/2018-01-01-some-post.md", "abc", samplePostText("Some Post")))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	post, err := newTestGithubService(srv).GetPostByTitle(context.Background(), "token", "Some Post", "")

	require.NoError(t, err)
	assert.Equal(t, "Some Post", post.Title)
	assert.Equal(t, "author", post.Author)
	assert.Equal(t, "_posts/2018-01-01-some-post.md", post.Path)
	assert.Empty(t, post.Ref)
}

func TestGetPostByTitleReturnsNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/msoe-sse/msoe-sse.github.io/contents/_posts", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	_, err := newTestGithubService(srv).GetPostByTitle(context.Background(), "token", "Missing", "")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetPostByTitleUsesRef(t *testing.T) {
	var sawRef bool
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/msoe-sse/msoe-sse.github.io/contents/_posts", func(w http.ResponseWriter, r *http.Request) {
		sawRef = r.URL.Query().Get("ref") == "createPostTestBranch"
		fmt.Fprint(w, `[{"name":"p.md","path":"_posts/p.md","sha":"s","type":"file"}]`)
	})
	mux.HandleFunc("/repos/msoe-sse/msoe-sse.github.io/contents/_posts/p.md", func(w http.ResponseWriter, r *http.Request) {
		w.Write(contentsJSON(t, "p.md", "_posts/p.md", "s", samplePostText("PR Post")))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	post, err := newTestGithubService(srv).GetPostByTitle(context.Background(), "token", "PR Post", "createPostTestBranch")

	require.NoError(t, err)
	assert.True(t, sawRef)
	assert.Equal(t, "createPostTestBranch", post.Ref)
}

func TestCreatePostCommitsNewFile(t *testing.T) {
	var putPath string
	var body map[string]string
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		putPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusCreated)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	err := newTestGithubService(srv).CreatePost(context.Background(), "token", "post text", "Some Post")

	require.NoError(t, err)
	expectedPath := fmt.Sprintf("/repos/msoe-sse/msoe-sse.github.io/contents/_posts/%s-some-post.md", time.Now().Format("2006-01-02"))
	assert.Equal(t, expectedPath, putPath)
	assert.Equal(t, "Created post Some Post", body["message"])

	raw, err := base64.StdEncoding.DecodeString(body["content"])
	require.NoError(t, err)
	assert.Equal(t, "post text", string(raw))
	assert.Empty(t, body["sha"])
}

func TestCreatePostReportsRemoteWriteFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	err := newTestGithubService(srv).CreatePost(context.Background(), "token", "post text", "Some Post")

	assert.ErrorIs(t, err, ErrRemoteWrite)
}

func TestEditPostSendsFetchedSHAAsPrecondition(t *testing.T) {
	var body map[string]string
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/msoe-sse/msoe-sse.github.io/contents/path.md", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Write(contentsJSON(t, "path.md", "path.md", "currentsha", samplePostText("title")))
			return
		}
		require.Equal(t, http.MethodPut, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	err := newTestGithubService(srv).EditPost(context.Background(), "token", "new text", "title", "path.md")

	require.NoError(t, err)
	assert.Equal(t, "currentsha", body["sha"])
	assert.Equal(t, "Edited post title", body["message"])
	assert.Empty(t, body["branch"])
}

func TestEditPostSurfacesConflict(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/msoe-sse/msoe-sse.github.io/contents/path.md", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			w.Write(contentsJSON(t, "path.md", "path.md", "stale", samplePostText("title")))
			return
		}
		w.WriteHeader(http.StatusConflict)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	err := newTestGithubService(srv).EditPost(context.Background(), "token", "new text", "title", "path.md")

	assert.ErrorIs(t, err, ErrConflict)
}

func TestEditPostInPRTargetsBranch(t *testing.T) {
	var getRef string
	var body map[string]string
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/msoe-sse/msoe-sse.github.io/contents/path.md", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			getRef = r.URL.Query().Get("ref")
			w.Write(contentsJSON(t, "path.md", "path.md", "sha123", samplePostText("title")))
			return
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	err := newTestGithubService(srv).EditPostInPR(context.Background(), "token", "new text", "title", "path.md", "ref")

	require.NoError(t, err)
	assert.Equal(t, "ref", getRef)
	assert.Equal(t, "ref", body["branch"])
	assert.Equal(t, "sha123", body["sha"])
}

func TestGetAllPostsParsesEveryMarkdownFile(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/msoe-sse/msoe-sse.github.io/contents/_posts", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"name":"a.md","path":"_posts/a.md","sha":"1","type":"file"},
			{"name":"b.md","path":"_posts/b.md","sha":"2","type":"file"},
			{"name":"notes.txt","path":"_posts/notes.txt","sha":"3","type":"file"}
		]`)
	})
	mux.HandleFunc("/repos/msoe-sse/msoe-sse.github.io/contents/_posts/a.md", func(w http.ResponseWriter, r *http.Request) {
		w.Write(contentsJSON(t, "a.md", "_posts/a.md", "1", samplePostText("title1")))
	})
	mux.HandleFunc("/repos/msoe-sse/msoe-sse.github.io/contents/_posts/b.md", func(w http.ResponseWriter, r *http.Request) {
		w.Write(contentsJSON(t, "b.md", "_posts/b.md", "2", samplePostText("title2")))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	posts, err := newTestGithubService(srv).GetAllPosts(context.Background(), "token")

	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "title1", posts[0].Title)
	assert.Equal(t, "_posts/a.md", posts[0].Path)
	assert.Equal(t, "title2", posts[1].Title)
}

func TestGetAllPostsInPRForUserOnlyReturnsOwnOpenPRs(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"login":"andy"}`)
	})
	mux.HandleFunc("/repos/msoe-sse/msoe-sse.github.io/pulls", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "open", r.URL.Query().Get("state"))
		fmt.Fprint(w, `[
			{"number":7,"user":{"login":"andy"},"head":{"ref":"createPostTestBranch"}},
			{"number":8,"user":{"login":"someone-else"},"head":{"ref":"other"}}
		]`)
	})
	mux.HandleFunc("/repos/msoe-sse/msoe-sse.github.io/pulls/7/files", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"filename":"_posts/2018-01-01-pr-post.md","status":"added"},
			{"filename":"assets/img/pic.jpg","status":"added"}
		]`)
	})
	mux.HandleFunc("/repos/msoe-sse/msoe-sse.github.io/contents/_posts/2018-01-01-pr-post.md", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "createPostTestBranch", r.URL.Query().Get("ref"))
		w.Write(contentsJSON(t, "2018-01-01-pr-post.md", "_posts/2018-01-01-pr-post.md", "x", samplePostText("PR Post")))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	posts, err := newTestGithubService(srv).GetAllPostsInPRForUser(context.Background(), "token")

	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "PR Post", posts[0].Title)
	assert.Equal(t, "_posts/2018-01-01-pr-post.md", posts[0].Path)
	assert.Equal(t, "createPostTestBranch", posts[0].Ref)
}

func TestCheckAccessToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer good" {
			fmt.Fprint(w, `{"login":"andy"}`)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	g := newTestGithubService(srv)
	assert.True(t, g.CheckAccessToken(context.Background(), "good"))
	assert.False(t, g.CheckAccessToken(context.Background(), "bad"))
}

func TestCheckOrgMembership(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"login":"andy"}`)
	})
	member := true
	mux.HandleFunc("/orgs/msoe-sse/members/andy", func(w http.ResponseWriter, r *http.Request) {
		if member {
			w.WriteHeader(http.StatusNoContent)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	g := newTestGithubService(srv)

	ok, err := g.CheckOrgMembership(context.Background(), "token")
	require.NoError(t, err)
	assert.True(t, ok)

	member = false
	ok, err = g.CheckOrgMembership(context.Background(), "token")
	require.NoError(t, err)
	assert.False(t, ok)
}
