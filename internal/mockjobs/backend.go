// Package mockjobs is a fake report backend for tests and demos.
//
// It speaks both wire shapes a widget can poll:
//
//   - submit-then-poll: POST /reports/{name}/start with a criteria form field
//     returns {"joburl": "/reports/jobs/{id}"}; each GET of the job URL
//     advances the job by one step
//   - direct-poll: GET /reports/{name}/data?ts={cursor} advances the job
//     keyed by name and cursor
//
// Status codes are configurable so both deployment families can be served.
package mockjobs

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Codes are the wire status integers the backend sends.
type Codes struct {
	Running  int
	Complete int
	Error    int
}

var (
	// PortalCodes: 1 running, 3 complete, 4 error.
	PortalCodes = Codes{Running: 1, Complete: 3, Error: 4}

	// LegacyCodes: 1 running, 2 complete, 3 error.
	LegacyCodes = Codes{Running: 1, Complete: 2, Error: 3}
)

// Report describes how a named report behaves.
type Report struct {
	// Steps is the number of running replies before the job finishes.
	Steps int

	// Build produces the payload from the submitted criteria. A returned
	// error finishes the job with the error status and the error text.
	Build func(criteria map[string]any) (any, error)
}

type job struct {
	report   string
	criteria map[string]any
	polls    int
}

// Backend is an in-memory report server. It is safe for concurrent use.
type Backend struct {
	codes  Codes
	engine *gin.Engine

	mu      sync.Mutex
	reports map[string]Report
	jobs    map[string]*job
	submits int
}

// Option configures a [Backend].
type Option func(*Backend)

// WithCORS allows browser pages on origins to call the backend. No origins
// allows every origin.
func WithCORS(origins ...string) Option {
	return func(b *Backend) {
		cfg := cors.DefaultConfig()
		if len(origins) == 0 {
			cfg.AllowAllOrigins = true
		} else {
			cfg.AllowOrigins = origins
		}
		cfg.AllowMethods = []string{http.MethodGet, http.MethodPost}
		b.engine.Use(cors.New(cfg))
	}
}

// New creates a backend answering with codes.
func New(codes Codes, opts ...Option) *Backend {
	b := &Backend{
		codes:   codes,
		engine:  gin.New(),
		reports: make(map[string]Report),
		jobs:    make(map[string]*job),
	}
	b.engine.Use(gin.Recovery())
	for _, opt := range opts {
		opt(b)
	}

	r := b.engine.Group("/reports")
	r.POST("/:name/start", b.handleStart)
	r.GET("/:name/data", b.handleData)
	r.GET("/jobs/:id", b.handleJob)
	return b
}

// Register adds or replaces the report served under name.
func (b *Backend) Register(name string, report Report) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reports[name] = report
}

// Handler returns the HTTP handler of the backend.
func (b *Backend) Handler() http.Handler {
	return b.engine
}

// Submits returns how many jobs were started through the submit route.
func (b *Backend) Submits() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.submits
}

func (b *Backend) handleStart(c *gin.Context) {
	name := c.Param("name")
	criteria, err := parseCriteria(c.PostForm("criteria"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if id := c.PostForm("widget_id"); id != "" {
		criteria["widget_id"] = id
	}

	b.mu.Lock()
	if _, ok := b.reports[name]; !ok {
		b.mu.Unlock()
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown report " + name})
		return
	}
	id := uuid.NewString()
	b.jobs[id] = &job{report: name, criteria: criteria}
	b.submits++
	b.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"joburl": "/reports/jobs/" + id})
}

func (b *Backend) handleJob(c *gin.Context) {
	b.mu.Lock()
	j, ok := b.jobs[c.Param("id")]
	b.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown job"})
		return
	}
	c.JSON(http.StatusOK, b.advance(j))
}

func (b *Backend) handleData(c *gin.Context) {
	name := c.Param("name")
	ts := c.Query("ts")
	if ts == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing ts"})
		return
	}

	criteria := make(map[string]any)
	for key, values := range c.Request.URL.Query() {
		if key != "ts" && len(values) > 0 {
			criteria[key] = values[0]
		}
	}

	b.mu.Lock()
	if _, ok := b.reports[name]; !ok {
		b.mu.Unlock()
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown report " + name})
		return
	}
	key := name + "@" + ts
	j, ok := b.jobs[key]
	if !ok {
		j = &job{report: name, criteria: criteria}
		b.jobs[key] = j
	}
	b.mu.Unlock()

	c.JSON(http.StatusOK, b.advance(j))
}

// advance records one poll of j and returns the reply for it.
func (b *Backend) advance(j *job) gin.H {
	b.mu.Lock()
	j.polls++
	polls := j.polls
	report := b.reports[j.report]
	b.mu.Unlock()

	if polls <= report.Steps {
		return gin.H{"status": b.codes.Running, "progress": polls * 100 / (report.Steps + 1)}
	}

	if report.Build == nil {
		return gin.H{"status": b.codes.Complete, "data": nil}
	}
	data, err := report.Build(j.criteria)
	if err != nil {
		return gin.H{"status": b.codes.Error, "message": err.Error()}
	}
	return gin.H{"status": b.codes.Complete, "data": data}
}

func parseCriteria(raw string) (map[string]any, error) {
	criteria := make(map[string]any)
	if raw == "" {
		return criteria, nil
	}
	if err := json.Unmarshal([]byte(raw), &criteria); err != nil {
		return nil, fmt.Errorf("criteria must be a JSON object: %w", err)
	}
	return criteria, nil
}
