package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"reelgen/backgrounds"
	"reelgen/jobs"
	"reelgen/pipeline"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RegisterReelRoutes registers reel generation endpoints.
func (s *Server) RegisterReelRoutes(r *gin.Engine) {
	g := r.Group("/api/reels")
	g.POST("", s.handleCreateReel)
	g.GET("", s.handleListReels)
	g.GET("/:id", s.handleReelStatus)
	g.GET("/:id/video", s.handleReelVideo)
	g.GET("/:id/captions", s.handleReelCaptions)
}

// CreateReelRequest is the JSON body of POST /api/reels.
type CreateReelRequest struct {
	RunID    string `json:"run_id"`
	Script   string `json:"script" binding:"required"`
	Category string `json:"category"`
	Captions string `json:"captions"`
}

// CreateReelResponse acknowledges an accepted run.
type CreateReelResponse struct {
	RunID     string `json:"run_id"`
	StatusURL string `json:"status_url"`
}

var errNotVideo = errors.New("uploaded file must be a video")

func (s *Server) handleCreateReel(c *gin.Context) {
	var (
		req pipeline.Request
		err error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		req, err = s.bindMultipart(c)
	} else {
		req, err = bindJSON(c)
	}
	if err != nil {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, errNotVideo):
			status = http.StatusUnsupportedMediaType
		case isTooLarge(err):
			status = http.StatusRequestEntityTooLarge
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	if strings.TrimSpace(req.Script) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "script is required"})
		return
	}

	id, err := s.runs.Submit(req)
	switch {
	case errors.Is(err, jobs.ErrDuplicateID):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case errors.Is(err, jobs.ErrClosed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	s.logger.Info("reel requested",
		zap.String("run_id", id),
		zap.String("category", string(req.Category)),
		zap.Bool("custom_video", req.CustomVideo != nil),
	)
	c.JSON(http.StatusAccepted, CreateReelResponse{RunID: id, StatusURL: "/api/reels/" + id})
}

func bindJSON(c *gin.Context) (pipeline.Request, error) {
	var body CreateReelRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		return pipeline.Request{}, err
	}
	cat, err := backgrounds.ParseCategory(body.Category)
	if err != nil {
		return pipeline.Request{}, err
	}
	return pipeline.Request{
		RunID:    body.RunID,
		Script:   body.Script,
		Category: cat,
		Captions: body.Captions,
	}, nil
}

func (s *Server) bindMultipart(c *gin.Context) (pipeline.Request, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload)

	req := pipeline.Request{
		RunID:    c.PostForm("run_id"),
		Script:   c.PostForm("script"),
		Captions: c.PostForm("captions"),
	}

	file, err := c.FormFile("video")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		cat, err := backgrounds.ParseCategory(c.PostForm("category"))
		if err != nil {
			return req, err
		}
		req.Category = cat
		return req, nil
	case err != nil:
		return req, err
	}

	if !isVideoType(file.Header.Get("Content-Type")) {
		return req, fmt.Errorf("%w, got %q", errNotVideo, file.Header.Get("Content-Type"))
	}
	f, err := file.Open()
	if err != nil {
		return req, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return req, err
	}
	if len(data) == 0 {
		return req, errors.New("uploaded video is empty")
	}
	req.CustomVideo = data
	if cat := c.PostForm("category"); cat != "" {
		// Kept for logging only; the upload replaces the rotation.
		req.Category, _ = backgrounds.ParseCategory(cat)
	}
	return req, nil
}

func isVideoType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && strings.HasPrefix(mediaType, "video/")
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

func (s *Server) handleListReels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"reels": s.runs.List()})
}

func (s *Server) lookup(c *gin.Context) (*pipeline.Run, bool) {
	run, err := s.runs.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return nil, false
	}
	return run, true
}

func (s *Server) handleReelStatus(c *gin.Context) {
	run, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, run.Status())
}

// finished writes a conflict response unless run has a result.
func (s *Server) finished(c *gin.Context, run *pipeline.Run) (*pipeline.Result, bool) {
	if res, ok := run.Result(); ok {
		return res, true
	}
	st := run.Status()
	body := gin.H{"state": st.State, "progress": st.Progress}
	if st.Error != "" {
		body["error"] = st.Error
	} else {
		body["error"] = "reel is not ready"
	}
	c.JSON(http.StatusConflict, body)
	return nil, false
}

func (s *Server) handleReelVideo(c *gin.Context) {
	run, ok := s.lookup(c)
	if !ok {
		return
	}
	res, ok := s.finished(c, run)
	if !ok {
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.SuggestedName))
	c.Data(http.StatusOK, "video/mp4", res.Video)
}

func (s *Server) handleReelCaptions(c *gin.Context) {
	run, ok := s.lookup(c)
	if !ok {
		return
	}
	res, ok := s.finished(c, run)
	if !ok {
		return
	}
	name := strings.TrimSuffix(res.SuggestedName, ".mp4") + ".srt"
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.Data(http.StatusOK, "application/x-subrip", []byte(res.Captions))
}
