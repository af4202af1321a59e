// Command scanservice exposes the threat scanner over HTTP, so pre-commit
// hooks and CI jobs can check document content without a full mirror run.
package main

import (
	"net/http"
	"os"

	"docs-sentinel/pkg/models"
	"docs-sentinel/pkg/threat"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

type ScanRequest struct {
	Content string `json:"content"`
}

type ScanResponse struct {
	Findings []models.Finding `json:"findings"`
}

func setupRouter() *gin.Engine {
	r := gin.Default()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/scan", func(c *gin.Context) {
		var req ScanRequest
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
			return
		}

		findings := threat.Scan(req.Content)
		if findings == nil {
			findings = []models.Finding{}
		}
		c.JSON(http.StatusOK, ScanResponse{Findings: findings})
	})

	return r
}

func main() {
	_ = godotenv.Load()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	r := setupRouter()
	if err := r.Run(":" + port); err != nil {
		os.Exit(1)
	}
}
