package httpapi

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// counterVec is a counter family keyed by label values. A family declared
// without labels holds one series.
type counterVec struct {
	name   string
	help   string
	labels []string

	mu     sync.Mutex
	series map[string]*counterSeries
}

type counterSeries struct {
	values []string
	n      uint64
}

// labelSep cannot occur in a valid UTF-8 label value.
const labelSep = "\xff"

// inc adds one to the series for values. Missing or blank values are
// recorded as "(unknown)" so a series always carries every label.
func (c *counterVec) inc(values ...string) {
	vals := make([]string, len(c.labels))
	for i := range vals {
		if i < len(values) {
			vals[i] = strings.TrimSpace(values[i])
		}
		if vals[i] == "" {
			vals[i] = "(unknown)"
		}
	}
	key := strings.Join(vals, labelSep)

	c.mu.Lock()
	s, ok := c.series[key]
	if !ok {
		s = &counterSeries{values: vals}
		c.series[key] = s
	}
	s.n++
	c.mu.Unlock()
}

// write appends the family in Prometheus text exposition format, series
// ordered by label values.
func (c *counterVec) write(b *strings.Builder) {
	c.mu.Lock()
	keys := make([]string, 0, len(c.series))
	for k := range c.series {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([]counterSeries, len(keys))
	for i, k := range keys {
		rows[i] = *c.series[k]
	}
	c.mu.Unlock()

	b.WriteString("# HELP " + c.name + " " + c.help + "\n")
	b.WriteString("# TYPE " + c.name + " counter\n")
	if len(c.labels) == 0 && len(rows) == 0 {
		rows = append(rows, counterSeries{})
	}
	for _, s := range rows {
		b.WriteString(c.name)
		if len(c.labels) > 0 {
			b.WriteByte('{')
			for i, l := range c.labels {
				if i > 0 {
					b.WriteByte(',')
				}
				b.WriteString(l + `="` + promLabelEscape(s.values[i]) + `"`)
			}
			b.WriteByte('}')
		}
		b.WriteString(" " + strconv.FormatUint(s.n, 10) + "\n")
	}
}

// serverMetrics is the set of process-local counters served on /metrics.
type serverMetrics struct {
	families []*counterVec

	requests        *counterVec
	requestsByRoute *counterVec
	appErrors       *counterVec
	scripts         *counterVec
}

func newServerMetrics() *serverMetrics {
	m := &serverMetrics{}
	m.requests = m.counter("chefboot_http_requests_total", "Total HTTP requests.")
	m.requestsByRoute = m.counter("chefboot_http_requests_by_pattern_total", "HTTP requests by route pattern and status.", "pattern", "status")
	m.appErrors = m.counter("chefboot_app_errors_total", "Application errors returned to clients.", "stage", "code")
	m.scripts = m.counter("chefboot_scripts_rendered_total", "Boot scripts served by OS family.", "os")
	return m
}

func (m *serverMetrics) counter(name, help string, labels ...string) *counterVec {
	c := &counterVec{name: name, help: help, labels: labels, series: make(map[string]*counterSeries)}
	m.families = append(m.families, c)
	return c
}

// observeRequest counts a finished request. Status 0 means the handler
// never wrote a header, which net/http sends as 200.
func (m *serverMetrics) observeRequest(pattern string, status int) {
	if status == 0 {
		status = http.StatusOK
	}
	m.requests.inc()
	m.requestsByRoute.inc(pattern, strconv.Itoa(status))
}

var metrics = newServerMetrics()

func handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")

	var b strings.Builder
	for _, c := range metrics.families {
		c.write(&b)
	}
	_, _ = w.Write([]byte(b.String()))
}

func promLabelEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return strings.ReplaceAll(s, "\n", `\n`)
}
