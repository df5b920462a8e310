package api

import (
	"net/http"

	"reelgen/backgrounds"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RegisterCategoryRoutes registers background category endpoints.
func (s *Server) RegisterCategoryRoutes(r *gin.Engine) {
	g := r.Group("/api/categories")
	g.GET("", s.handleListCategories)
	g.POST("/:category/reset", s.handleResetCategory)
}

// CategoryResponse describes one background category.
type CategoryResponse struct {
	ID    backgrounds.Category `json:"id"`
	Name  string               `json:"name"`
	Clips int                  `json:"clips"`
}

func (s *Server) handleListCategories(c *gin.Context) {
	sizes := s.rotation.Sizes()
	out := make([]CategoryResponse, 0, len(sizes))
	for _, cat := range backgrounds.Categories() {
		out = append(out, CategoryResponse{ID: cat, Name: cat.DisplayName(), Clips: sizes[cat]})
	}
	c.JSON(http.StatusOK, gin.H{"categories": out})
}

func (s *Server) handleResetCategory(c *gin.Context) {
	cat, err := backgrounds.ParseCategory(c.Param("category"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err := s.rotation.Reset(c.Request.Context(), cat); err != nil {
		s.logger.Error("rotation reset failed", zap.String("category", string(cat)), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reset rotation: " + err.Error()})
		return
	}
	s.logger.Info("rotation reset", zap.String("category", string(cat)))
	c.JSON(http.StatusOK, gin.H{"status": "reset", "category": cat})
}
