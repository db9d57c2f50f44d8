package web

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"

	"research-rag/internal/app"
)

//go:embed templates/*.html
var templatesFS embed.FS

func NewRouter(a *app.App) *gin.Engine {
	gin.SetMode(a.Config.HTTP.GinMode)
	router := gin.New()
	router.Use(requestLogger(), gin.Recovery())
	router.SetHTMLTemplate(template.Must(template.ParseFS(templatesFS, "templates/*.html")))

	maxBody := int64(a.Config.HTTP.MaxUploadMB) << 20
	router.MaxMultipartMemory = min(maxBody, 32<<20)

	h := &Handler{app: a}
	router.GET("/healthz", h.Health)
	router.GET("/metrics", gin.WrapH(a.Metrics.Handler()))

	router.GET("/", h.Index)
	router.POST("/upload", limitBody(maxBody), h.Upload)
	router.POST("/process", h.Process)
	router.POST("/ask", h.Ask)

	v1 := router.Group("/api/v1")
	v1.GET("/library", h.APILibrary)
	v1.DELETE("/library", h.APIResetLibrary)
	v1.POST("/library/process", h.APIProcess)
	v1.POST("/documents", limitBody(maxBody), h.APIUpload)
	v1.POST("/ask", h.APIAsk)

	return router
}

type Handler struct {
	app *app.App
}

func (h *Handler) Health(c *gin.Context) {
	n, err := h.app.Store.Count(c.Request.Context())
	if err != nil {
		Error(c, http.StatusServiceUnavailable, CodeInternalServer, "vector store unavailable")
		return
	}
	OK(c, gin.H{"status": "ok", "library": h.app.Config.Library.Name, "chunks": n})
}
