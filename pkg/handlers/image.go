package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// UploadImage stages a post image for previewing. The file is resized and
// parked under a temporary path; nothing reaches the site repository until
// the post is submitted.
func UploadImage(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}

	staged, err := imageStore.Add(file)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Failed to stage image: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, staged)
}
