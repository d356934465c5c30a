package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NodeExporter serves the self metrics of the poller. Collectors are read on scrape, nothing
// is queried from PgBouncer here.
type NodeExporter struct {
	registry *prometheus.Registry
}

func NewNodeExporter(collectors ...prometheus.Collector) *NodeExporter {
	reg := prometheus.NewPedanticRegistry()
	reg.MustRegister(collectors...)
	return &NodeExporter{registry: reg}
}

func (z *NodeExporter) Init(c gin.IRouter) {
	c.GET("metrics", gin.WrapH(promhttp.HandlerFor(z.registry, promhttp.HandlerOpts{})))
}
