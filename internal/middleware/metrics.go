package middleware

import (
	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RedisErrors counts failed Redis commands by command name.
var RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "portal_redis_errors_total",
	Help: "Number of Redis command errors",
}, []string{"command"})

// StorageErrors counts failed object storage operations by operation.
var StorageErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "portal_storage_errors_total",
	Help: "Number of object storage operation errors",
}, []string{"operation"})

// MailerErrors counts failed outbound email deliveries.
var MailerErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: "portal_mailer_errors_total",
	Help: "Number of failed email deliveries",
})

// InitMetrics creates the Prometheus middleware for the given service name.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	return fiberprometheus.New(serviceName)
}

// MetricsMiddleware returns the request-metrics middleware handler.
func MetricsMiddleware(p *fiberprometheus.FiberPrometheus) fiber.Handler {
	return p.Middleware
}
