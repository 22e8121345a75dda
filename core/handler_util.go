package core

import "github.com/gin-gonic/gin"

// respondError sends unified error payload {"error": {"code", "message"}}.
func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": gin.H{"code": code, "message": message}})
}

// respondFieldErrors is respondError plus per-field messages.
func respondFieldErrors(c *gin.Context, status int, code, message string, fields map[string]string) {
	c.JSON(status, gin.H{"error": gin.H{"code": code, "message": message, "fields": fields}})
}
