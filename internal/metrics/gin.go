package metrics

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsPath 是 Prometheus 抓取地址，本身不计入 HTTP 指标。
const MetricsPath = "/metrics"

// 站点的几类页面；其余路由（健康检查、默认文档等）归为 other。
var surfaces = map[string]bool{
	"editor":  true,
	"preview": true,
	"photos":  true,
	"fliers":  true,
	"login":   true,
	"ws":      true,
}

var (
	registerOnce sync.Once

	// 预览渲染和照片上传明显慢于普通页面，桶上限放宽到 30 秒。
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "flier",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "传单站点按路由模板统计的请求耗时（秒）。",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "route", "status"},
	)

	requestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "flier",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "传单站点按路由模板和状态码统计的请求数。",
		},
		[]string{"method", "route", "status"},
	)

	surfaceInFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "flier",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "各页面（editor、preview、photos 等）正在处理的请求数。",
		},
		[]string{"surface"},
	)
)

// surfaceOf maps a gin route template to the page it serves.
func surfaceOf(route string) string {
	first, _, _ := strings.Cut(strings.TrimPrefix(route, "/"), "/")
	if surfaces[first] {
		return first
	}
	if route == "" {
		return "unmatched"
	}
	return "other"
}

// GinMiddleware 记录传单站点每个路由的请求量、耗时和并发数。
func GinMiddleware() gin.HandlerFunc {
	registerOnce.Do(func() {
		prometheus.MustRegister(requestDuration, requestTotal, surfaceInFlight)
	})

	return func(c *gin.Context) {
		if c.Request.URL.Path == MetricsPath {
			c.Next()
			return
		}
		start := time.Now()
		// 路由在进入中间件前已匹配，FullPath 此时可用。
		route := c.FullPath()
		inFlight := surfaceInFlight.WithLabelValues(surfaceOf(route))
		inFlight.Inc()
		defer inFlight.Dec()

		c.Next()

		// 未命中路由时不用原始路径作标签，扫描请求不会撑大指标基数。
		if route == "" {
			route = "unmatched"
		}
		labels := prometheus.Labels{
			"method": c.Request.Method,
			"route":  route,
			"status": strconv.Itoa(c.Writer.Status()),
		}
		requestDuration.With(labels).Observe(time.Since(start).Seconds())
		requestTotal.With(labels).Inc()
	}
}
