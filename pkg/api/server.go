// Package api provides the REST API server for midi2notes
package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/james-see/midi2notes/pkg/converter"
	"github.com/james-see/midi2notes/pkg/logger"
	"github.com/james-see/midi2notes/pkg/notes"
	"github.com/james-see/midi2notes/pkg/render"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// MaxUploadSize bounds the size of uploaded MIDI files
const MaxUploadSize = 16 << 20

// @title midi2notes API
// @version 1.0
// @description API for extracting note intervals from standard MIDI files
// @host localhost:8080
// @BasePath /api/v1

// Server holds the defaults applied when a request omits a parameter
type Server struct {
	Mode     notes.Mode
	Parallel bool
	Frame    render.Frame
}

// NewServer creates a server with seconds mode and the default frame
func NewServer() *Server {
	return &Server{
		Mode:  notes.ModeSeconds,
		Frame: render.DefaultFrame(),
	}
}

// StartServer starts the API server on the specified port
func StartServer(port int) error {
	return NewServer().Run(port)
}

// Run serves the API on the specified port
func (s *Server) Run(port int) error {
	return s.Router().Run(fmt.Sprintf(":%d", port))
}

// Router builds the gin engine with all routes
func (s *Server) Router() *gin.Engine {
	r := gin.Default()

	// CORS middleware
	r.Use(corsMiddleware())

	// Health check
	r.GET("/health", healthCheck)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.GET("/modes", listModes)
		v1.POST("/notes", s.handleNotes)
		v1.POST("/summary", s.handleSummary)
		v1.POST("/render", s.handleRender)
	}

	// Swagger docs
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// healthCheck godoc
// @Summary Health check endpoint
// @Description Returns the health status of the API
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "midi2notes",
	})
}

// listModes godoc
// @Summary List timing modes and output formats
// @Tags info
// @Produce json
// @Success 200 {object} map[string][]string
// @Router /api/v1/modes [get]
func listModes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"modes":   notes.Modes(),
		"formats": converter.GetSupportedFormats(),
		"sorts":   []string{string(converter.SortNone), string(converter.SortStart), string(converter.SortPitch)},
	})
}

// handleNotes godoc
// @Summary Extract notes from a MIDI file
// @Description Upload a MIDI file and receive its notes as JSON or CSV
// @Tags notes
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "MIDI file"
// @Param mode query string false "ticks or seconds (default: seconds)"
// @Param sort query string false "none, start or pitch (default: none)"
// @Param format query string false "json or csv (default: json)"
// @Success 200 {array} notes.Note
// @Failure 400 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Router /api/v1/notes [post]
func (s *Server) handleNotes(c *gin.Context) {
	format, err := converter.ParseFormat(c.DefaultQuery("format", "json"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	order, err := converter.ParseSortOrder(c.DefaultQuery("sort", string(converter.SortNone)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ns, _, _, ok := s.extract(c)
	if !ok {
		return
	}
	converter.SortNotes(ns, order)

	if format == converter.FormatJSON {
		if ns == nil {
			ns = []notes.Note{}
		}
		c.JSON(http.StatusOK, ns)
		return
	}

	var buf bytes.Buffer
	if err := converter.Write(&buf, format, ns); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, converter.ContentType(format), buf.Bytes())
}

// handleSummary godoc
// @Summary Summarize the notes of a MIDI file
// @Tags notes
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "MIDI file"
// @Param mode query string false "ticks or seconds (default: seconds)"
// @Success 200 {object} notes.Summary
// @Failure 400 {object} map[string]string
// @Router /api/v1/summary [post]
func (s *Server) handleSummary(c *gin.Context) {
	ns, mode, _, ok := s.extract(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"mode":    mode,
		"summary": notes.Summarize(ns),
	})
}

// handleRender godoc
// @Summary Render a piano-roll snapshot
// @Description Upload a MIDI file and receive a PNG frame at playhead time "at"
// @Tags render
// @Accept multipart/form-data
// @Produce image/png
// @Param file formData file true "MIDI file"
// @Param mode query string false "ticks or seconds (default: seconds)"
// @Param at query number false "playhead position (default: 0)"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Router /api/v1/render [post]
func (s *Server) handleRender(c *gin.Context) {
	at, err := strconv.ParseFloat(c.DefaultQuery("at", "0"), 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid playhead position"})
		return
	}

	ns, mode, timing, ok := s.extract(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := s.Frame.ForTiming(mode, timing).Render(&buf, ns, at, string(mode)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

// extract reads the uploaded file and runs the extractor. On failure it
// writes the error response and returns ok == false.
func (s *Server) extract(c *gin.Context) (ns []notes.Note, mode notes.Mode, timing notes.Timing, ok bool) {
	mode = s.Mode
	if q := c.Query("mode"); q != "" {
		m, err := notes.ParseMode(q)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return nil, "", timing, false
		}
		mode = m
	}

	// Get uploaded file
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return nil, "", timing, false
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(io.LimitReader(file, MaxUploadSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return nil, "", timing, false
	}
	if len(data) > MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
		return nil, "", timing, false
	}

	conv := converter.New(notes.Options{
		Mode:     mode,
		Parallel: s.Parallel,
		Logger:   logger.GetLogger(),
	})
	ns, timing, err = conv.ExtractWithTiming(data)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return nil, "", timing, false
	}
	return ns, mode, timing, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, notes.ErrMalformedStream):
		return http.StatusBadRequest
	case errors.Is(err, notes.ErrUnsupportedTiming):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
