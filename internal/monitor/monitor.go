package monitor

import (
	"errors"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/skorokhod/furniture_shop/internal/apperr"
)

const defaultCapacity = 1000

type Sample struct {
	Method   string        `json:"method"`
	Path     string        `json:"path"`
	Status   int           `json:"status"`
	Duration time.Duration `json:"duration_ns"`
	At       time.Time     `json:"at"`
}

// Collector keeps a bounded window of request samples for observability.
// It is constructed in main and injected; nothing depends on it for
// correctness.
type Collector struct {
	mu       sync.Mutex
	cap      int
	samples  []Sample
	start    int
	recorded uint64
}

func NewCollector(capacity int) *Collector {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Collector{cap: capacity, samples: make([]Sample, 0, capacity)}
}

// Record appends a sample, dropping the oldest one once the window is full.
func (c *Collector) Record(s Sample) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recorded++
	if len(c.samples) < c.cap {
		c.samples = append(c.samples, s)
		return
	}
	c.samples[c.start] = s
	c.start = (c.start + 1) % c.cap
}

// Snapshot returns the buffered samples oldest-first.
func (c *Collector) Snapshot() []Sample {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Sample, 0, len(c.samples))
	out = append(out, c.samples[c.start:]...)
	out = append(out, c.samples[:c.start]...)
	return out
}

type Stats struct {
	Recorded  uint64        `json:"recorded"`
	Buffered  int           `json:"buffered"`
	AvgMillis float64       `json:"avg_ms"`
	MaxMillis float64       `json:"max_ms"`
	Statuses  map[int]int   `json:"statuses"`
	Window    time.Duration `json:"window_ns"`
}

func (c *Collector) Stats() Stats {
	samples := c.Snapshot()

	c.mu.Lock()
	recorded := c.recorded
	c.mu.Unlock()

	st := Stats{Recorded: recorded, Buffered: len(samples), Statuses: make(map[int]int)}
	if len(samples) == 0 {
		return st
	}
	var total time.Duration
	var max time.Duration
	for _, s := range samples {
		total += s.Duration
		if s.Duration > max {
			max = s.Duration
		}
		st.Statuses[s.Status]++
	}
	st.AvgMillis = float64(total.Milliseconds()) / float64(len(samples))
	st.MaxMillis = float64(max.Milliseconds())
	st.Window = time.Since(samples[0].At)
	return st
}

// Middleware records one sample per handled request. An error returned by
// the chain has not reached the boundary handler yet, so its status is
// derived here instead of trusting the uncommitted response.
func (c *Collector) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ec echo.Context) error {
			start := time.Now()
			err := next(ec)
			status := ec.Response().Status
			if err != nil {
				status = errorStatus(err)
			}
			c.Record(Sample{
				Method:   ec.Request().Method,
				Path:     ec.Path(),
				Status:   status,
				Duration: time.Since(start),
				At:       start,
			})
			return err
		}
	}
}

func errorStatus(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	return apperr.KindOf(err).HTTPStatus()
}
