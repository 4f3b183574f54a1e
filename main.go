package main

import (
	"os"

	"jekyll-post-editor/pkg/config"
	"jekyll-post-editor/pkg/handlers"
	"jekyll-post-editor/pkg/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

func main() {
	// Initialize config
	config.Init()

	github := services.NewGithubService()
	posts := services.NewPostService(github)
	images := services.NewImageStore(config.UploadsDir, config.UploadsURL)
	handlers.Setup(github, posts, images)

	r := gin.Default()

	// Session Setup
	store := cookie.NewStore([]byte(os.Getenv("SESSION_SECRET")))
	r.Use(sessions.Sessions("posteditor", store))

	// Static Files & Templates
	r.LoadHTMLGlob("templates/*")
	r.Static(config.UploadsURL, config.UploadsDir)
	r.Static("/static", "./static")
	r.StaticFile("/GitHubOrgError.html", "./static/GitHubOrgError.html")

	// --- Auth Routes ---
	r.GET("/login", handlers.LoginPage)
	r.GET("/auth/github", handlers.GithubLogin)
	r.GET("/auth/callback", handlers.AuthCallback)
	r.GET("/logout", handlers.Logout)

	// --- Editor (Authorized) ---
	authorized := r.Group("/")
	authorized.Use(handlers.AuthRequired, handlers.OrgMembershipRequired)
	{
		authorized.GET("/", handlers.ListPosts)
		authorized.GET("/post/list", handlers.ListPosts)
		authorized.GET("/post/edit", handlers.EditPost)
		authorized.GET("/post/preview", handlers.PreviewPost)
		authorized.POST("/post/submit", handlers.SubmitPost)
		authorized.POST("/post/image", handlers.UploadImage)
	}

	r.Run(":8080")
}
