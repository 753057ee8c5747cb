package ui

import (
	"net/http"
	"os"

	"entitlements/adapters/document"
	"entitlements/adapters/relational"
	"entitlements/internal/storage"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleIndex(c *gin.Context) {
	if s.hasDashboard() {
		c.Redirect(http.StatusFound, "/dashboard/")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"endpoints": []string{
			"/data/" + baseName(s.options.DocumentPath),
			"/api/metadata",
			"/api/database/metadata",
			"/healthz",
		},
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleDocument serves the document as written by the last run
func (s *Server) handleDocument(c *gin.Context) {
	if ok, err := storage.Exists(s.options.DocumentPath); err != nil || !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "document not generated yet; run the json command first"})
		return
	}
	c.Header("Cache-Control", "no-cache")
	c.File(s.options.DocumentPath)
}

// handleMetadata returns only the metadata block of the document
func (s *Server) handleMetadata(c *gin.Context) {
	f, err := os.Open(s.options.DocumentPath)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "document not generated yet"})
		return
	}
	defer f.Close()

	meta, err := document.ReadMetadata(f)
	if err != nil {
		s.logger.Error("Failed to read document metadata: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"generated_at":  meta.GeneratedAtISO(),
		"total_records": meta.TotalRecords,
		"source_file":   meta.SourceFile,
		"columns":       meta.Columns,
	})
}

// handleDatabaseMetadata returns the key/value metadata table of the relational output
func (s *Server) handleDatabaseMetadata(c *gin.Context) {
	if s.options.Database == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no database configured"})
		return
	}

	db, err := relational.Open(c.Request.Context(), *s.options.Database)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	defer db.Close()

	meta, err := relational.ReadMetadata(c.Request.Context(), db)
	if err != nil {
		s.logger.Error("Failed to read database metadata: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, meta)
}
