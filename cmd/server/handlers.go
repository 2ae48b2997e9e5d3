package main

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/momentics/govna/pkg/govna"
)

var scanDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name: "govna_scan_duration_seconds",
		Help: "Duration of VNA scan operations",
	},
	[]string{"port"},
)

func init() {
	prometheus.MustRegister(scanDuration)
}

// validPortPattern restricts the port parameter to plausible serial
// device names before it gets anywhere near the filesystem.
var validPortPattern = regexp.MustCompile(`^(COM\d+|/dev/tty(ACM|USB)\d+)$`)

func setupRouter(pool *govna.VNAPool, cfg serverConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())
	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1", newRateLimiter(cfg.RateLimit).middleware())
	api.GET("/scan", scanHandler(pool, cfg))
	api.GET("/vswr", vswrHandler(pool, cfg))

	return router
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logrus.WithFields(logrus.Fields{
			"status":   c.Writer.Status(),
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"client":   c.ClientIP(),
			"duration": time.Since(start),
		}).Info("request")
	}
}

// acquireScan resolves the device, applies the requested (or default)
// sweep and runs one acquisition.
func acquireScan(pool *govna.VNAPool, cfg serverConfig, c *gin.Context) (govna.VNAData, string, error) {
	port := c.Query("port")
	if !validPortPattern.MatchString(port) {
		return govna.VNAData{}, "", fmt.Errorf("%w: invalid or missing 'port' parameter", govna.ErrValidation)
	}

	sweep := govna.SweepConfig{
		Start:  cfg.Sweep.Start,
		Stop:   cfg.Sweep.Stop,
		Points: cfg.Sweep.Points,
	}
	var err error
	if s := c.Query("start"); s != "" {
		if sweep.Start, err = strconv.ParseFloat(s, 64); err != nil {
			return govna.VNAData{}, "", fmt.Errorf("%w: invalid 'start' parameter", govna.ErrValidation)
		}
	}
	if s := c.Query("stop"); s != "" {
		if sweep.Stop, err = strconv.ParseFloat(s, 64); err != nil {
			return govna.VNAData{}, "", fmt.Errorf("%w: invalid 'stop' parameter", govna.ErrValidation)
		}
	}
	if s := c.Query("points"); s != "" {
		if sweep.Points, err = strconv.Atoi(s); err != nil {
			return govna.VNAData{}, "", fmt.Errorf("%w: invalid 'points' parameter", govna.ErrValidation)
		}
	}

	vna, err := pool.Get(port)
	if err != nil {
		return govna.VNAData{}, "", err
	}
	if err := vna.SetSweep(sweep); err != nil {
		return govna.VNAData{}, "", err
	}

	start := time.Now()
	data, err := vna.GetData()
	if err != nil {
		return govna.VNAData{}, "", err
	}
	scanDuration.WithLabelValues(port).Observe(time.Since(start).Seconds())
	return data, port, nil
}

func scanHandler(pool *govna.VNAPool, cfg serverConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		data, port, err := acquireScan(pool, cfg, c)
		if err != nil {
			abortWithError(c, err)
			return
		}
		logrus.Infof("scan on %s completed, %d points", port, len(data.Frequencies))
		c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(data.ToTouchstone()))
	}
}

func vswrHandler(pool *govna.VNAPool, cfg serverConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		data, _, err := acquireScan(pool, cfg, c)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"frequencies": data.Frequencies,
			"vswr":        data.CalculateVSWR(),
		})
	}
}

// abortWithError maps the core error taxonomy onto HTTP statuses.
// Device and transport details are logged, not leaked to the client.
func abortWithError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, govna.ErrValidation):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, govna.ErrUnidentifiedDevice), errors.Is(err, govna.ErrPort):
		logrus.Errorf("device error: %v", err)
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "device unavailable"})
	default:
		logrus.Errorf("scan failed: %v", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "scan failed"})
	}
}
