package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/pagehook/internal/dom"
	"github.com/GriffinCanCode/pagehook/internal/shared/id"
	"github.com/GriffinCanCode/pagehook/internal/shared/utils"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || isLoopbackOrigin(origin)
	},
}

type createPageRequest struct {
	URL  string `json:"url" binding:"required"`
	HTML string `json:"html"`
}

type clickRequest struct {
	XPath string `json:"xpath" binding:"required"`
	Wait  bool   `json:"wait"`
}

type dragRequest struct {
	Type  string   `json:"type" binding:"required,oneof=enter over leave drop"`
	XPath string   `json:"xpath"`
	Files []string `json:"files"`
	Wait  bool     `json:"wait"`
}

type mutationRequest struct {
	ParentXPath string `json:"parent_xpath" binding:"required"`
	HTML        string `json:"html" binding:"required"`
}

type changeRequest struct {
	XPath string   `json:"xpath" binding:"required"`
	Files []string `json:"files"`
	Wait  bool     `json:"wait"`
}

type scriptRequest struct {
	Source string `json:"source" binding:"required"`
}

type eventResponse struct {
	Classification     string `json:"classification,omitempty"`
	DefaultPrevented   bool   `json:"default_prevented"`
	PropagationStopped bool   `json:"propagation_stopped"`
	DropEffect         string `json:"drop_effect,omitempty"`
	DragDepth          int32  `json:"drag_depth"`
}

var dragEvents = map[string]string{
	"enter": dom.EventDragEnter,
	"over":  dom.EventDragOver,
	"leave": dom.EventDragLeave,
	"drop":  dom.EventDrop,
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"pages":  s.pages.Len(),
		"blobs":  s.pages.Blobs().Len(),
	})
}

func (s *Server) page(c *gin.Context) (*Page, bool) {
	p, err := s.pages.Get(id.PageID(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return nil, false
	}
	return p, true
}

func (s *Server) createPage(c *gin.Context) {
	var req createPageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := firstError(
		utils.ValidatePageURL(req.URL),
		utils.ValidateSize(req.HTML, "html", utils.MaxPageSize),
	); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p, err := s.pages.Create(req.URL, req.HTML)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":  p.ID,
		"url": p.Doc.URL().String(),
	})
}

func (s *Server) getPage(c *gin.Context) {
	p, ok := s.page(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":              p.ID,
		"url":             p.Doc.URL().String(),
		"installed":       p.Interceptor.Installed(),
		"drag_depth":      p.Interceptor.DragDepth(),
		"shell_connected": p.Host.Connected(),
		"pending_prompts": p.Host.Pending(),
		"created":         p.Created.Format(time.RFC3339),
	})
}

func (s *Server) closePage(c *gin.Context) {
	if err := s.pages.Close(id.PageID(c.Param("id"))); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"closed": true})
}

func (s *Server) click(c *gin.Context) {
	p, ok := s.page(c)
	if !ok {
		return
	}
	var req clickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := utils.ValidateXPath(req.XPath, "xpath"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p.Lock()
	target, err := p.Doc.XPath(req.XPath)
	if err != nil {
		p.Unlock()
		elementError(c, err)
		return
	}
	class, ev := p.Interceptor.Click(target)
	p.Unlock()

	if req.Wait {
		p.Interceptor.Wait()
	}
	c.JSON(http.StatusOK, eventResponse{
		Classification:     class.String(),
		DefaultPrevented:   ev.DefaultPrevented(),
		PropagationStopped: ev.PropagationStopped(),
	})
}

func (s *Server) drag(c *gin.Context) {
	p, ok := s.page(c)
	if !ok {
		return
	}
	var req dragRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := firstError(
		utils.ValidateString(req.XPath, "xpath", utils.MaxXPathLength, false),
		utils.ValidateFiles(req.Files),
	); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	files, err := openFiles(req.Files)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p.Lock()
	target := p.Doc.Body()
	if req.XPath != "" {
		if target, err = p.Doc.XPath(req.XPath); err != nil {
			p.Unlock()
			elementError(c, err)
			return
		}
	}
	ev := dom.NewEvent(dragEvents[req.Type], target)
	ev.Files = files
	p.Doc.Dispatch(ev)
	p.Unlock()

	if req.Wait {
		p.Interceptor.Wait()
	}
	c.JSON(http.StatusOK, eventResponse{
		DefaultPrevented:   ev.DefaultPrevented(),
		PropagationStopped: ev.PropagationStopped(),
		DropEffect:         ev.DropEffect,
		DragDepth:          p.Interceptor.DragDepth(),
	})
}

func (s *Server) mutate(c *gin.Context) {
	p, ok := s.page(c)
	if !ok {
		return
	}
	var req mutationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := firstError(
		utils.ValidateXPath(req.ParentXPath, "parent_xpath"),
		utils.ValidateSize(req.HTML, "html", utils.MaxFragmentSize),
	); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p.Lock()
	defer p.Unlock()

	parent, err := p.Doc.XPath(req.ParentXPath)
	if err != nil {
		elementError(c, err)
		return
	}
	added, err := p.Doc.AppendHTML(parent, req.HTML)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"added": len(added)})
}

func (s *Server) change(c *gin.Context) {
	p, ok := s.page(c)
	if !ok {
		return
	}
	var req changeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := firstError(
		utils.ValidateXPath(req.XPath, "xpath"),
		utils.ValidateFiles(req.Files),
	); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	files, err := openFiles(req.Files)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	p.Lock()
	input, err := p.Doc.XPath(req.XPath)
	if err != nil {
		p.Unlock()
		elementError(c, err)
		return
	}
	ev := dom.NewEvent(dom.EventChange, input)
	ev.Files = files
	p.Doc.Dispatch(ev)
	p.Unlock()

	if req.Wait {
		p.Interceptor.Wait()
	}
	c.JSON(http.StatusOK, eventResponse{
		DefaultPrevented:   ev.DefaultPrevented(),
		PropagationStopped: ev.PropagationStopped(),
	})
}

func (s *Server) script(c *gin.Context) {
	p, ok := s.page(c)
	if !ok {
		return
	}
	var req scriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := utils.ValidateSize(req.Source, "source", utils.MaxScriptSize); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := p.Runtime.Run(c.Request.Context(), req.Source)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "console": res.Console})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"value":       res.Value,
		"console":     res.Console,
		"duration_ms": res.Duration.Milliseconds(),
	})
}

func (s *Server) connect(c *gin.Context) {
	p, ok := s.page(c)
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	p.Host.Serve(c.Request.Context(), conn)
}

func (s *Server) blob(c *gin.Context) {
	if _, ok := s.page(c); !ok {
		return
	}
	b, ok := s.pages.Blobs().Get(c.Param("ref"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "object url revoked or unknown"})
		return
	}
	contentType := b.Type
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Data(http.StatusOK, contentType, b.Data)
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func elementError(c *gin.Context, err error) {
	status := http.StatusBadRequest
	if errors.Is(err, dom.ErrNotFound) {
		status = http.StatusNotFound
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func openFiles(paths []string) ([]dom.File, error) {
	files := make([]dom.File, 0, len(paths))
	for _, path := range paths {
		f, err := dom.FileFromPath(path)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}
