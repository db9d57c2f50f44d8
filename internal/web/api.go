package web

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type AskRequest struct {
	Question string `json:"question" binding:"required"`
}

type ProcessRequest struct {
	Force bool `json:"force"`
}

func (h *Handler) APILibrary(c *gin.Context) {
	st, err := h.app.Ingest.Status(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	OK(c, st)
}

func (h *Handler) APIUpload(c *gin.Context) {
	docs, err := readUploads(c)
	if err != nil {
		Error(c, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	OK(c, gin.H{"files": h.app.Ingest.Save(docs)})
}

func (h *Handler) APIProcess(c *gin.Context) {
	var req ProcessRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			Error(c, http.StatusBadRequest, CodeBadRequest, "invalid request payload")
			return
		}
	}
	report, err := h.app.Ingest.Process(c.Request.Context(), req.Force)
	if err != nil {
		_ = c.Error(err)
		Fail(c, err)
		return
	}
	OK(c, report)
}

func (h *Handler) APIResetLibrary(c *gin.Context) {
	if err := h.app.Ingest.Reset(c.Request.Context()); err != nil {
		_ = c.Error(err)
		Fail(c, err)
		return
	}
	OK(c, gin.H{"library": h.app.Config.Library.Name, "chunks": 0})
}

func (h *Handler) APIAsk(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, CodeBadRequest, "invalid request payload")
		return
	}
	res, err := h.app.RAG.Ask(c.Request.Context(), req.Question)
	if err != nil {
		_ = c.Error(err)
		Fail(c, err)
		return
	}
	OK(c, res)
}
