package handlers

import (
	"errors"
	"net/http"

	"jekyll-post-editor/pkg/models"
	"jekyll-post-editor/pkg/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

var (
	githubSvc  *services.GithubService
	postSvc    *services.PostService
	imageStore *services.ImageStore
)

// Setup wires the handler package to its services. Called once from main.
func Setup(g *services.GithubService, p *services.PostService, store *services.ImageStore) {
	githubSvc = g
	postSvc = p
	imageStore = store
}

// ListPosts shows every post on the main branch plus the user's posts still
// open as pull requests. The staging area is cleared here so abandoned
// uploads do not pile up between editing sessions.
func ListPosts(c *gin.Context) {
	session := sessions.Default(c)
	token := session.Get("access_token").(string)

	imageStore.Clear()

	posts, err := githubSvc.GetAllPosts(c.Request.Context(), token)
	if err != nil {
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{"message": "Fetching posts from GitHub failed"})
		return
	}
	prPosts, err := githubSvc.GetAllPostsInPRForUser(c.Request.Context(), token)
	if err != nil {
		c.HTML(http.StatusInternalServerError, "error.html", gin.H{"message": "Fetching open pull requests from GitHub failed"})
		return
	}

	notice := takeFlash(session, "notice")
	alert := takeFlash(session, "alert")
	c.HTML(http.StatusOK, "list.html", gin.H{
		"Posts":   posts,
		"PRPosts": prPosts,
		"Notice":  notice,
		"Alert":   alert,
	})
}

// EditPost renders the editor: blank for a new post, populated from GitHub
// when a title (and optionally a PR ref) is given, or rebuilt from the
// session draft left behind by a failed submission.
func EditPost(c *gin.Context) {
	session := sessions.Default(c)
	token := session.Get("access_token").(string)

	var post models.Post
	title := c.Query("title")
	ref := c.Query("ref")

	switch {
	case session.Get("post_stored") == true:
		post = draftFromSession(session)
		clearDraft(session)
	case title != "":
		var err error
		post, err = githubSvc.GetPostByTitle(c.Request.Context(), token, title, ref)
		if errors.Is(err, services.ErrNotFound) {
			c.HTML(http.StatusNotFound, "error.html", gin.H{"message": "No post with that title exists"})
			return
		}
		if err != nil {
			c.HTML(http.StatusInternalServerError, "error.html", gin.H{"message": "Fetching the post from GitHub failed"})
			return
		}
	}

	alert := takeFlash(session, "alert")
	c.HTML(http.StatusOK, "edit.html", gin.H{
		"Post":  post,
		"Alert": alert,
	})
}

// PreviewPost converts the editor's markdown to HTML, with staged image
// links rewritten so uploads show up before they are committed.
func PreviewPost(c *gin.Context) {
	html, err := services.GetPreview(c.Query("text"), imageStore.Staged())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Preview rendering failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"html": html})
}

// SubmitPost runs one submission and redirects with the outcome: the list
// view on success, back to the editor with an alert otherwise. The form
// fields are kept as a session draft on failure so nothing typed is lost.
func SubmitPost(c *gin.Context) {
	session := sessions.Default(c)
	token := session.Get("access_token").(string)

	var req models.SubmissionRequest
	if err := c.ShouldBind(&req); err != nil {
		c.String(http.StatusBadRequest, "Invalid form")
		return
	}
	req.Path = c.Query("path")
	req.Ref = c.Query("ref")

	err := postSvc.SubmitPost(c.Request.Context(), token, req)
	if err == nil {
		imageStore.ReleaseFor(req.Markdown)
		session.AddFlash(services.NoticeSubmitted, "notice")
		session.Save()
		c.Redirect(http.StatusFound, "/post/list")
		return
	}

	storeDraft(session, req)

	var validation *services.ValidationError
	switch {
	case errors.As(err, &validation):
		session.AddFlash(validation.Message, "alert")
	case errors.Is(err, services.ErrConflict):
		session.AddFlash(services.AlertEditConflict, "alert")
	default:
		session.AddFlash(services.AlertSubmitFailed, "alert")
	}
	session.Save()
	c.Redirect(http.StatusFound, "/post/edit")
}

func storeDraft(session sessions.Session, req models.SubmissionRequest) {
	session.Set("post_stored", true)
	session.Set("title", req.Title)
	session.Set("author", req.Author)
	session.Set("contents", req.Markdown)
	session.Set("tags", req.Tags)
	session.Set("overlay", req.Overlay)
	session.Set("hero", req.Hero)
	session.Set("path", req.Path)
	session.Set("ref", req.Ref)
}

func draftFromSession(session sessions.Session) models.Post {
	str := func(key string) string {
		if v, ok := session.Get(key).(string); ok {
			return v
		}
		return ""
	}
	return models.Post{
		Title:    str("title"),
		Author:   str("author"),
		Contents: str("contents"),
		Tags:     services.SplitTags(str("tags")),
		Overlay:  str("overlay"),
		Hero:     str("hero"),
		// Path and Ref keep a failed edit targeting its original file, so a
		// retry does not turn into a create.
		Path: str("path"),
		Ref:  str("ref"),
	}
}

func clearDraft(session sessions.Session) {
	for _, key := range []string{"post_stored", "title", "author", "contents", "tags", "overlay", "hero", "path", "ref"} {
		session.Delete(key)
	}
	session.Save()
}

func takeFlash(session sessions.Session, key string) string {
	flashes := session.Flashes(key)
	if len(flashes) == 0 {
		return ""
	}
	session.Save()
	if msg, ok := flashes[0].(string); ok {
		return msg
	}
	return ""
}
