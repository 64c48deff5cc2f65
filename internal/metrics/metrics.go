package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RoomsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "forum_rooms_created_total",
		Help: "Total number of rooms created",
	})
	MessagesPostedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "forum_messages_posted_total",
		Help: "Total number of messages posted",
	})
	TopicsCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "forum_topics_created_total",
		Help: "Total number of topics created through get-or-create",
	})
	AuthzDeniedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "forum_authz_denied_total",
		Help: "Total number of mutations rejected by the ownership check",
	}, []string{"entity"})
	HttpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
	HttpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

func init() {
	prometheus.MustRegister(RoomsCreatedTotal, MessagesPostedTotal, TopicsCreatedTotal, AuthzDeniedTotal, HttpRequestsTotal, HttpRequestDuration)
}

// GinMiddleware 统计基础请求指标，供 Prometheus 拉取。
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		labels := prometheus.Labels{"method": c.Request.Method, "path": path, "status": status}
		HttpRequestsTotal.With(labels).Inc()
		HttpRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	}
}
