package httpserver

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/metrics", s.metricsEndpoint)

	api := s.echo.Group("/api/v1")

	cache := api.Group("/cache")
	cache.GET("/stats", s.getCacheStats)
	cache.DELETE("", s.deleteCachePattern)
	cache.POST("/flush", s.flushCache)
	cache.POST("/reenable", s.reenableCache)

	rechequeos := api.Group("/rechequeos")
	rechequeos.GET("", s.listRechequeos)
	rechequeos.POST("", s.createRechequeo)
	rechequeos.GET("/kpis", s.getRechequeoKPIs)
	rechequeos.GET("/filters", s.getRechequeoFilters)
}
