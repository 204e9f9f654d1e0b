package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"transformer-losses/config"
	"transformer-losses/internal/collector"
	"transformer-losses/internal/losses"
	"transformer-losses/internal/storage"
	"transformer-losses/internal/sweep"
	"transformer-losses/internal/weather"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type Server struct {
	router      *gin.Engine
	server      *http.Server
	collector   *collector.Collector
	db          *storage.Database
	port        int
	config      *config.Config
	configPath  string
	configMutex sync.RWMutex
	newWeather  func() (weather.Provider, error)
}

type ServerConfig struct {
	Port       int
	Collector  *collector.Collector
	Database   *storage.Database
	Config     *config.Config
	ConfigPath string
	// NewWeather builds the provider used when the temperature source is
	// switched to weather at runtime. Nil disables that switch unless the
	// collector already has a provider.
	NewWeather func() (weather.Provider, error)
}

func NewServer(cfg ServerConfig) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	s := &Server{
		router:     router,
		collector:  cfg.Collector,
		db:         cfg.Database,
		port:       cfg.Port,
		config:     cfg.Config,
		configPath: cfg.ConfigPath,
		newWeather: cfg.NewWeather,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthHandler)

	api := s.router.Group("/api/v1")
	{
		api.GET("/defaults", s.defaultsHandler)
		api.GET("/coefficients", s.coefficientsHandler)
		api.GET("/losses", s.lossesQueryHandler)
		api.POST("/losses", s.lossesBodyHandler)
		api.GET("/sweep/:dimension", s.sweepHandler)

		api.GET("/status", s.statusHandler)
		api.GET("/records", s.recordsHandler)
		api.GET("/records/latest", s.latestRecordHandler)
		api.GET("/records/:run_id", s.recordHandler)
		api.GET("/stats/daily", s.dailyStatsHandler)

		api.GET("/config/transformer", s.getTransformerConfigHandler)
		api.PUT("/config/transformer", s.updateTransformerConfigHandler)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.router,
	}

	log.Printf("API server starting on port %d", s.port)
	return s.server.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) nameplate() losses.OperatingParameters {
	s.configMutex.RLock()
	defer s.configMutex.RUnlock()
	if s.config == nil {
		return losses.DefaultParameters()
	}
	return s.config.Transformer.Parameters()
}

func (s *Server) healthHandler(c *gin.Context) {
	collecting := false
	meterOnline := false
	if s.collector != nil {
		collecting = s.collector.IsCollecting()
		if snap := s.collector.GetLatest(); snap != nil && snap.Reading != nil {
			meterOnline = snap.Reading.IsOnline
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "healthy",
		"meter_online": meterOnline,
		"collecting":   collecting,
		"timestamp":    time.Now(),
	})
}

func (s *Server) defaultsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"parameters": s.nameplate(),
		"ranges":     losses.Ranges,
		"materials":  losses.Materials,
	})
}

func (s *Server) coefficientsHandler(c *gin.Context) {
	table := make(map[losses.CoreMaterial]losses.Coefficients, len(losses.Materials))
	for _, m := range losses.Materials {
		table[m] = losses.CoefficientsFor(m)
	}
	c.JSON(http.StatusOK, gin.H{
		"coefficients":      table,
		"fallback_material": losses.CRGO,
		"temp_factor":       losses.DefaultTempFactor,
		"insulation_factor": losses.DefaultInsulationFactor,
	})
}

func (s *Server) lossesQueryHandler(c *gin.Context) {
	var o ParameterOverrides
	if err := c.ShouldBindQuery(&o); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := o.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.respondLosses(c, o.Apply(s.nameplate()))
}

func (s *Server) lossesBodyHandler(c *gin.Context) {
	var o ParameterOverrides
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&o); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	if err := o.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.respondLosses(c, o.Apply(s.nameplate()))
}

func (s *Server) respondLosses(c *gin.Context, p losses.OperatingParameters) {
	if c.Query("strict") == "true" {
		if err := p.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	report := losses.Analyze(p)

	if c.Query("persist") == "true" {
		if s.db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Storage not configured"})
			return
		}
		record, err := s.db.SaveRecord(report, storage.SourceManual)
		if errors.Is(err, storage.ErrNonFinite) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "report": report})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"run_id": record.RunID, "report": report})
		return
	}

	c.JSON(http.StatusOK, report)
}

func (s *Server) sweepHandler(c *gin.Context) {
	dim, err := sweep.ParseDimension(c.Param("dimension"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var o ParameterOverrides
	if err := c.ShouldBindQuery(&o); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := o.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req := sweep.Request{Dimension: dim}
	from, to := dim.DefaultRange()
	rangeSet := false
	for name, dst := range map[string]*float64{"from": &from, "to": &to} {
		if v := c.Query(name); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid '%s' value", name)})
				return
			}
			*dst = f
			rangeSet = true
		}
	}
	if rangeSet {
		req = req.WithRange(from, to)
	}
	if v := c.Query("points"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'points' value"})
			return
		}
		req.Points = n
	}

	res, err := sweep.Run(c.Request.Context(), o.Apply(s.nameplate()), req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if c.Query("persist") == "true" {
		if s.db == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Storage not configured"})
			return
		}
		_, err := s.db.SaveRecords(res.ID, res.Reports(), storage.SourceSweep)
		if errors.Is(err, storage.ErrNonFinite) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	if field := c.Query("field"); field != "" {
		ys, err := res.Series(sweep.Field(field))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"id":        res.ID,
			"dimension": res.Dimension,
			"unit":      res.Unit,
			"field":     field,
			"x":         res.XS(),
			"y":         losses.FiniteSeries(ys),
		})
		return
	}

	c.JSON(http.StatusOK, res)
}

func (s *Server) statusHandler(c *gin.Context) {
	var snap *collector.Snapshot
	if s.collector != nil {
		snap = s.collector.GetLatest()
	}
	if snap == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "No data available yet",
		})
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) recordsHandler(c *gin.Context) {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	limitStr := c.DefaultQuery("limit", "100")

	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 || limit > 1000 {
		limit = 100
	}

	if fromStr != "" && toStr != "" {
		from, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'from' date format"})
			return
		}
		to, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid 'to' date format"})
			return
		}

		records, err := s.db.GetRecordsByRange(from, to)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, records)
		return
	}

	records, err := s.db.GetRecordsWithLimit(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, records)
}

func (s *Server) latestRecordHandler(c *gin.Context) {
	record, err := s.db.GetLatestRecord()
	s.respondRecord(c, record, err)
}

func (s *Server) recordHandler(c *gin.Context) {
	record, err := s.db.GetRecordByRunID(c.Param("run_id"))
	s.respondRecord(c, record, err)
}

func (s *Server) respondRecord(c *gin.Context, record *storage.LossRecord, err error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) dailyStatsHandler(c *gin.Context) {
	dateStr := c.DefaultQuery("date", time.Now().Format("2006-01-02"))
	date, err := time.ParseInLocation("2006-01-02", dateStr, time.Local)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date format"})
		return
	}

	stats, err := s.db.GetDailyStats(date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// TransformerConfigRequest updates the nameplate. All fields are required
// so a partial body cannot silently zero the rating.
type TransformerConfigRequest struct {
	Name              string  `json:"name"`
	PrimaryVoltage    float64 `json:"primary_voltage_v" binding:"required,gt=0"`
	SecondaryVoltage  float64 `json:"secondary_voltage_v" binding:"required,gt=0"`
	Frequency         float64 `json:"frequency_hz" binding:"required,gt=0"`
	RatedPower        float64 `json:"rated_power_kva" binding:"required,gt=0"`
	CoreMaterial      string  `json:"core_material" binding:"required,oneof=CRGO Ferrite"`
	WindingResistance float64 `json:"winding_resistance_ohm" binding:"required,gt=0"`
	LoadPercent       float64 `json:"load_percent" binding:"gte=0,lte=100"`
	Temperature       float64 `json:"temperature_c"`
	TemperatureSource string  `json:"temperature_source" binding:"omitempty,oneof=fixed meter weather"`
	TemperatureRise   float64 `json:"temperature_rise_c"`
}

func (s *Server) getTransformerConfigHandler(c *gin.Context) {
	s.configMutex.RLock()
	defer s.configMutex.RUnlock()

	t := s.config.Transformer
	c.JSON(http.StatusOK, TransformerConfigRequest{
		Name:              t.Name,
		PrimaryVoltage:    t.PrimaryVoltage,
		SecondaryVoltage:  t.SecondaryVoltage,
		Frequency:         t.Frequency,
		RatedPower:        t.RatedPower,
		CoreMaterial:      t.CoreMaterial,
		WindingResistance: t.WindingResistance,
		LoadPercent:       t.LoadPercent,
		Temperature:       t.Temperature,
		TemperatureSource: t.TemperatureSource,
		TemperatureRise:   t.TemperatureRise,
	})
}

func (s *Server) updateTransformerConfigHandler(c *gin.Context) {
	var req TransformerConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.configMutex.RLock()
	sourceName := s.config.Transformer.TemperatureSource
	s.configMutex.RUnlock()
	if req.TemperatureSource != "" {
		sourceName = req.TemperatureSource
	}
	source, err := collector.ParseTemperatureSource(sourceName)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if s.collector != nil {
		var provider weather.Provider
		if source == collector.TemperatureWeather && s.newWeather != nil {
			provider, err = s.newWeather()
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("weather provider: %v", err)})
				return
			}
		}
		if err := s.collector.UpdateTemperatureSource(source, req.TemperatureRise, provider); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
	}

	s.configMutex.Lock()
	t := &s.config.Transformer
	if req.Name != "" {
		t.Name = req.Name
	}
	t.PrimaryVoltage = req.PrimaryVoltage
	t.SecondaryVoltage = req.SecondaryVoltage
	t.Frequency = req.Frequency
	t.RatedPower = req.RatedPower
	t.CoreMaterial = req.CoreMaterial
	t.WindingResistance = req.WindingResistance
	t.LoadPercent = req.LoadPercent
	t.Temperature = req.Temperature
	t.TemperatureSource = string(source)
	t.TemperatureRise = req.TemperatureRise
	updated := *t
	s.configMutex.Unlock()

	if s.collector != nil {
		s.collector.UpdateNameplate(updated.Parameters())
	}

	if err := config.SaveTransformer(s.configPath, updated); err != nil {
		log.Printf("Warning: Failed to save config to file: %v", err)
		c.JSON(http.StatusOK, gin.H{
			"message": "Configuration applied but not persisted to file",
			"warning": err.Error(),
		})
		return
	}

	log.Printf("Transformer configuration updated: %.0f kVA %s", updated.RatedPower, updated.CoreMaterial)

	c.JSON(http.StatusOK, gin.H{
		"message": "Configuration updated successfully",
	})
}
