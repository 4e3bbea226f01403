// Package api provides the REST API server for neonhorizon
package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/james-see/neonhorizon/pkg/catalog"
	"github.com/james-see/neonhorizon/pkg/encoder"
	"github.com/james-see/neonhorizon/pkg/generator"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title Neon Horizon API
// @version 1.0
// @description Renders pieces of the deterministic synth catalog as MIDI files
// @host localhost:8080
// @BasePath /api/v1

// Server renders catalog pieces on request
type Server struct {
	catalog   *catalog.Catalog
	generator *generator.Generator
	writer    *encoder.MIDIWriter
	logger    *slog.Logger
}

// NewServer creates a Server. Nil arguments fall back to the defaults.
func NewServer(c *catalog.Catalog, g *generator.Generator, logger *slog.Logger) *Server {
	if c == nil {
		c = catalog.Default()
	}
	if g == nil {
		g = generator.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		catalog:   c,
		generator: g,
		writer:    encoder.NewMIDIWriter(g.Theory(), logger),
		logger:    logger,
	}
}

// Router builds the gin engine with every route registered
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLogger())

	// CORS middleware
	r.Use(corsMiddleware())

	// Health check
	r.GET("/health", healthCheck)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.GET("/catalog", s.getCatalog)
		v1.GET("/pieces", s.listPieces)
		v1.GET("/pieces/:name", s.getPiece)
		v1.POST("/render", s.render)
	}

	// Swagger docs
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

// StartServer starts the API server on the specified port
func StartServer(port int, s *Server) error {
	s.logger.Info("starting API server", "port", port)
	return s.Router().Run(fmt.Sprintf(":%d", port))
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
		)
	}
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
		"service": "neonhorizon",
	})
}

// getCatalog godoc
// @Summary Describe the catalog
// @Description Returns keys, tempi, bass and melody formulas and the total piece count
// @Tags info
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/catalog [get]
func (s *Server) getCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"keys":   s.catalog.Keys,
		"tempi":  s.catalog.Tempi.Values(),
		"bass":   s.catalog.Bass,
		"melody": s.catalog.Melody,
		"total":  s.catalog.Size(),
	})
}

// listPieces godoc
// @Summary List piece file names
// @Description Returns a page of catalog file names in enumeration order
// @Tags info
// @Produce json
// @Param offset query int false "First index (default 0)"
// @Param limit query int false "Page size (default 100, max 1000)"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]string
// @Router /api/v1/pieces [get]
func (s *Server) listPieces(c *gin.Context) {
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 || limit > 1000 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	sets := s.catalog.Enumerate()
	if offset > len(sets) {
		offset = len(sets)
	}
	end := min(offset+limit, len(sets))

	names := make([]string, 0, end-offset)
	for _, p := range sets[offset:end] {
		names = append(names, catalog.Filename(p))
	}
	c.JSON(http.StatusOK, gin.H{
		"offset": offset,
		"total":  len(sets),
		"pieces": names,
	})
}

// getPiece godoc
// @Summary Download a catalog piece
// @Description Regenerates the piece encoded in the file name
// @Tags render
// @Produce audio/midi
// @Param name path string true "Catalog file name"
// @Success 200 {file} binary
// @Failure 404 {object} map[string]string
// @Router /api/v1/pieces/{name} [get]
func (s *Server) getPiece(c *gin.Context) {
	name := c.Param("name")
	params, err := s.catalog.ParseFilename(name)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	s.sendPiece(c, params, name)
}

// RenderRequest is the body of POST /render
type RenderRequest struct {
	Key    string                  `json:"key" binding:"required"`
	Tempo  int                     `json:"tempo" binding:"required"`
	Bass   generator.BassFormula   `json:"bass"`
	Melody generator.MelodyFormula `json:"melody"`
	// Root overrides the key's root pitch and allows keys outside the catalog
	Root *int `json:"root,omitempty"`
}

// render godoc
// @Summary Render arbitrary parameters
// @Description Generates a piece for the posted parameter set
// @Tags render
// @Accept json
// @Produce audio/midi
// @Param request body RenderRequest true "Parameter set"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Router /api/v1/render [post]
func (s *Server) render(c *gin.Context) {
	var req RenderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	params := generator.ParameterSet{
		KeyName: req.Key,
		Tempo:   req.Tempo,
		Bass:    req.Bass,
		Melody:  req.Melody,
	}
	if req.Root != nil {
		params.Root = *req.Root
	} else {
		k, ok := s.catalog.Key(req.Key)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown key %q", req.Key)})
			return
		}
		params.Root = k.Root
	}

	s.sendPiece(c, params, catalog.Filename(params))
}

func (s *Server) sendPiece(c *gin.Context, params generator.ParameterSet, filename string) {
	piece, err := s.generator.Generate(params)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, generator.ErrInvalidParams) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	data, report, err := s.writer.Write(piece)
	if err != nil {
		s.logger.Error("render failed", "file", filename, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("X-Delta-Clamps", strconv.Itoa(report.Total()))
	c.Data(http.StatusOK, "audio/midi", data)
}
