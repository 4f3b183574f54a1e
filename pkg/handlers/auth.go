package handlers

import (
	"context"
	"net/http"

	"jekyll-post-editor/pkg/config"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuthRequired sends users without a working access token through the GitHub
// authorization flow. Tokens are re-checked on every request because GitHub
// can revoke them at any time.
func AuthRequired(c *gin.Context) {
	session := sessions.Default(c)
	token, ok := session.Get("access_token").(string)
	if !ok || token == "" || !githubSvc.CheckAccessToken(c.Request.Context(), token) {
		redirectToGithubAuth(c, session)
		return
	}
	c.Next()
}

// OrgMembershipRequired keeps non-members of the site organization out of the
// editor.
func OrgMembershipRequired(c *gin.Context) {
	session := sessions.Default(c)
	token := session.Get("access_token").(string)

	member, err := githubSvc.CheckOrgMembership(c.Request.Context(), token)
	if err != nil {
		c.String(http.StatusInternalServerError, "GitHub membership check failed")
		c.Abort()
		return
	}
	if !member {
		c.Redirect(http.StatusFound, "/GitHubOrgError.html")
		c.Abort()
		return
	}
	c.Next()
}

func LoginPage(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", nil)
}

func GithubLogin(c *gin.Context) {
	session := sessions.Default(c)
	redirectToGithubAuth(c, session)
}

func AuthCallback(c *gin.Context) {
	session := sessions.Default(c)
	if state, ok := session.Get("oauth_state").(string); !ok || state != c.Query("state") {
		c.String(http.StatusBadRequest, "OAuth state mismatch")
		return
	}

	token, err := config.OauthConf.Exchange(context.Background(), c.Query("code"))
	if err != nil {
		c.String(http.StatusInternalServerError, "OAuth Exchange Failed")
		return
	}

	session.Delete("oauth_state")
	session.Set("access_token", token.AccessToken)
	session.Save()

	c.Redirect(http.StatusFound, "/post/list")
}

func Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Save()
	c.Redirect(http.StatusFound, "/login")
}

func redirectToGithubAuth(c *gin.Context, session sessions.Session) {
	state := uuid.NewString()
	session.Set("oauth_state", state)
	session.Save()
	c.Redirect(http.StatusFound, config.OauthConf.AuthCodeURL(state))
	c.Abort()
}
