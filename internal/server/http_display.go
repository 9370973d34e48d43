package server

import "fmt"

// displayServerInfo shows server configuration information
func (s *Server) displayServerInfo() {
	s.displayEndpoints()
	s.displayAuthInfo()
	s.displayCORSInfo()
	s.displayRequestLimitInfo()
	s.displayRateLimitInfo()
}

// displayEndpoints shows available API endpoints
func (s *Server) displayEndpoints() {
	fmt.Println("Available endpoints:")
	fmt.Println("  GET  /health        - Health check")
	fmt.Println("  GET  /stats         - Server statistics")
	fmt.Println("  POST /api/analyze   - Analyze a CV against a job (multipart, requires password)")
	fmt.Println("  POST /api/generate  - Generate tailored documents (JSON, requires password)")
}

// displayAuthInfo shows authentication configuration
func (s *Server) displayAuthInfo() {
	if s.Password.Enabled() {
		fmt.Println("Password gate: ENABLED")
		fmt.Printf("Send 'password' in the request or the '%s' header\n", PasswordHeader)
	} else {
		fmt.Println("Password gate: DISABLED (no password configured)")
		fmt.Println("WARNING: API endpoints are publicly accessible!")
	}
}

// displayCORSInfo shows which browser origin may call the API
func (s *Server) displayCORSInfo() {
	switch s.AllowedOrigin {
	case "":
		fmt.Println("CORS: no browser origin allowed")
	case "*":
		fmt.Println("CORS: all origins allowed")
		fmt.Println("WARNING: any website can call this API!")
	default:
		fmt.Printf("CORS: allowed origin %s\n", s.AllowedOrigin)
	}
}

// displayRequestLimitInfo shows request size limit configuration
func (s *Server) displayRequestLimitInfo() {
	if s.MaxRequestSize > 0 {
		fmt.Printf("Request size limit: %d bytes (%.1f MB)\n", s.MaxRequestSize, float64(s.MaxRequestSize)/(1024*1024))
	} else {
		fmt.Println("Request size limit: DISABLED")
		fmt.Println("WARNING: No request size limits configured!")
	}
}

// displayRateLimitInfo shows rate limiting configuration
func (s *Server) displayRateLimitInfo() {
	if s.RateLimit != nil && s.RateLimit.Enabled {
		fmt.Printf("Rate limiting: ENABLED (%d requests/min, burst: %d)\n",
			s.RateLimit.RequestsPerMin, s.RateLimit.BurstCapacity)
	} else {
		fmt.Println("Rate limiting: DISABLED")
		fmt.Println("WARNING: No rate limiting configured!")
	}

	if s.AnalysisLimiter != nil {
		fmt.Printf("Analysis limit: ENABLED (%d/hour, %d/day per client)\n",
			s.AnalysisLimiter.perHour, s.AnalysisLimiter.perDay)
	} else {
		fmt.Println("Analysis limit: DISABLED")
	}
}
