// Package server exposes cached forecasts over HTTP.
package server

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/FlavioCFOliveira/pricecast/internal/forecast"
	"github.com/FlavioCFOliveira/pricecast/internal/output"
	"github.com/FlavioCFOliveira/pricecast/internal/pipeline"
	"github.com/FlavioCFOliveira/pricecast/internal/series"
	"github.com/FlavioCFOliveira/pricecast/internal/storage"
)

var coinPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// Options configures the handler.
type Options struct {
	// DataDir holds <coin>.csv price histories.
	DataDir  string
	CacheDir string
	Profile  forecast.Profile
	// Seed fixes every request's random source; 0 seeds from the clock.
	Seed int64
}

// Archive stores runs and serves them back.
type Archive interface {
	pipeline.Archive
	GetRun(ctx context.Context, id uuid.UUID) (*storage.Run, error)
	LatestRun(ctx context.Context, source string) (*storage.Run, error)
	ListRuns(ctx context.Context, source string, limit int) ([]storage.Run, error)
}

const maxHistory = 100

// Server serves /predictions/:coin and the archived runs behind it.
type Server struct {
	opts    Options
	archive Archive
	log     zerolog.Logger
	engine  *gin.Engine
}

// PredictionResponse is the body of a successful prediction request.
type PredictionResponse struct {
	Coin   string            `json:"coin"`
	Method string            `json:"method"`
	Points output.Trajectory `json:"points"`
}

// RunResponse is one archived run. Points are omitted from history listings.
type RunResponse struct {
	ID           string            `json:"id"`
	Coin         string            `json:"coin"`
	Profile      string            `json:"profile"`
	Method       string            `json:"method"`
	CreatedAt    time.Time         `json:"created_at"`
	LastObserved time.Time         `json:"last_observed"`
	Points       output.Trajectory `json:"points,omitempty"`
}

func newRunResponse(r *storage.Run) RunResponse {
	return RunResponse{
		ID:           r.ID.String(),
		Coin:         r.Source,
		Profile:      r.Profile,
		Method:       r.Method,
		CreatedAt:    r.CreatedAt,
		LastObserved: r.LastObserved,
		Points:       r.Points,
	}
}

type errorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// New builds the router. archive may be nil, in which case the run
// endpoints answer 404.
func New(opts Options, archive Archive, log zerolog.Logger) *Server {
	s := &Server{
		opts:    opts,
		archive: archive,
		log:     log,
		engine:  gin.New(),
	}
	s.engine.Use(gin.Recovery(), s.requestLogger())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/healthz", s.getHealth)
	s.engine.GET("/predictions/:coin", s.getPrediction)
	s.engine.GET("/predictions/:coin/history", s.getHistory)
	s.engine.GET("/predictions/:coin/latest", s.getLatest)
	s.engine.GET("/predictions/:coin/runs/:id", s.getRun)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

func (s *Server) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) getPrediction(c *gin.Context) {
	coin := c.Param("coin")
	if !coinPattern.MatchString(coin) {
		abort(c, http.StatusBadRequest, "invalid coin name")
		return
	}

	input := filepath.Join(s.opts.DataDir, coin+".csv")
	info, err := os.Stat(input)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			abort(c, http.StatusNotFound, "Could not fetch prediction")
			return
		}
		s.log.Error().Err(err).Str("coin", coin).Msg("stat input")
		abort(c, http.StatusInternalServerError, "internal error")
		return
	}

	cachePath := output.CachePath(s.opts.CacheDir, input)
	if cached, meta, ok := s.fromCache(cachePath, info.ModTime()); ok {
		c.JSON(http.StatusOK, PredictionResponse{Coin: coin, Method: meta.Method, Points: cached})
		return
	}

	out, err := pipeline.Run(c.Request.Context(), pipeline.Options{
		Input:    input,
		CacheDir: s.opts.CacheDir,
		Profile:  s.opts.Profile,
		Rand:     rand.New(rand.NewSource(s.seed())),
		Archive:  s.archive,
		Source:   coin,
	}, s.log.With().Str("coin", coin).Logger())
	switch {
	case errors.Is(err, series.ErrInsufficientData):
		abort(c, http.StatusUnprocessableEntity, "not enough data for a prediction")
		return
	case err != nil:
		s.log.Error().Err(err).Str("coin", coin).Msg("prediction failed")
		abort(c, http.StatusInternalServerError, "Could not fetch prediction")
		return
	}

	c.JSON(http.StatusOK, PredictionResponse{
		Coin:   coin,
		Method: string(out.Result.Method),
		Points: out.Trajectory,
	})
}

// fromCache returns the cached trajectory when it is newer than the input
// and was produced by the server's profile.
func (s *Server) fromCache(path string, inputMod time.Time) (output.Trajectory, output.Meta, bool) {
	info, err := os.Stat(path)
	if err != nil || !info.ModTime().After(inputMod) {
		return nil, output.Meta{}, false
	}
	meta, err := output.ReadMeta(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Warn().Err(err).Str("path", path).Msg("ignoring cache with unreadable metadata")
		}
		return nil, meta, false
	}
	if meta.Profile != s.opts.Profile.Fingerprint() {
		s.log.Debug().Str("path", path).Msg("cache was produced by another profile")
		return nil, meta, false
	}
	t, err := output.ReadCache(path)
	if err != nil {
		s.log.Warn().Err(err).Str("path", path).Msg("ignoring unreadable cache")
		return nil, meta, false
	}
	return t, meta, true
}

func (s *Server) getHistory(c *gin.Context) {
	coin, ok := s.runCoin(c)
	if !ok {
		return
	}
	limit := maxHistory
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			abort(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxHistory)
	}

	runs, err := s.archive.ListRuns(c.Request.Context(), coin, limit)
	if err != nil {
		s.log.Error().Err(err).Str("coin", coin).Msg("list runs")
		abort(c, http.StatusInternalServerError, "internal error")
		return
	}
	resp := make([]RunResponse, 0, len(runs))
	for i := range runs {
		resp = append(resp, newRunResponse(&runs[i]))
	}
	c.JSON(http.StatusOK, gin.H{"coin": coin, "runs": resp})
}

func (s *Server) getLatest(c *gin.Context) {
	coin, ok := s.runCoin(c)
	if !ok {
		return
	}
	run, err := s.archive.LatestRun(c.Request.Context(), coin)
	s.respondRun(c, coin, run, err)
}

func (s *Server) getRun(c *gin.Context) {
	coin, ok := s.runCoin(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abort(c, http.StatusBadRequest, "invalid run id")
		return
	}
	run, err := s.archive.GetRun(c.Request.Context(), id)
	if err == nil && run.Source != coin {
		err = storage.ErrNotFound
	}
	s.respondRun(c, coin, run, err)
}

// runCoin validates the coin of a run endpoint and that an archive exists.
func (s *Server) runCoin(c *gin.Context) (string, bool) {
	coin := c.Param("coin")
	if !coinPattern.MatchString(coin) {
		abort(c, http.StatusBadRequest, "invalid coin name")
		return "", false
	}
	if s.archive == nil {
		abort(c, http.StatusNotFound, "run archive is not enabled")
		return "", false
	}
	return coin, true
}

func (s *Server) respondRun(c *gin.Context, coin string, run *storage.Run, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		abort(c, http.StatusNotFound, "run not found")
	case err != nil:
		s.log.Error().Err(err).Str("coin", coin).Msg("load run")
		abort(c, http.StatusInternalServerError, "internal error")
	default:
		c.JSON(http.StatusOK, newRunResponse(run))
	}
}

func (s *Server) seed() int64 {
	if s.opts.Seed != 0 {
		return s.opts.Seed
	}
	return time.Now().UnixNano()
}

func abort(c *gin.Context, status int, msg string) {
	var body errorBody
	body.Error.Message = msg
	c.AbortWithStatusJSON(status, body)
}
