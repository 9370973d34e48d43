package config

import (
	"time"

	"github.com/spf13/viper"
)

// DefaultTrustedDomains are the career sites the ATS and role queries are restricted to
var DefaultTrustedDomains = []string{
	"linkedin.com", "glassdoor.com", "indeed.com",
	"jobscan.co", "shrm.org", "hbr.org", "lever.co",
	"greenhouse.io", "workday.com",
}

// setDefaults sets the default configuration values.
// Every key needs a default so AutomaticEnv can override it on Unmarshal.
func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.logLevel", "info")
	v.SetDefault("app.defaultFormat", "json")
	v.SetDefault("app.supportedFormats", []string{"json", "text", "markdown"})
	v.SetDefault("app.maxFileSize", 5*1024*1024)
	v.SetDefault("app.maxFieldLength", 300)
	v.SetDefault("app.maxJobDescription", 8000)
	v.SetDefault("app.minExtractedChars", 50)

	// Server
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.readTimeout", 30*time.Second)
	v.SetDefault("server.writeTimeout", 150*time.Second) // generation runs several model calls
	v.SetDefault("server.idleTimeout", 120*time.Second)
	v.SetDefault("server.maxRequestSize", 12*1024*1024) // two 5MB PDFs plus form fields
	v.SetDefault("server.password", "")
	v.SetDefault("server.tls.enabled", false)
	v.SetDefault("server.tls.certFile", "")
	v.SetDefault("server.tls.keyFile", "")
	v.SetDefault("server.cors.allowedOrigin", "http://localhost:3000")
	v.SetDefault("server.rateLimit.enabled", true)
	v.SetDefault("server.rateLimit.requestsPerMin", 30)
	v.SetDefault("server.rateLimit.burstCapacity", 10)
	v.SetDefault("server.rateLimit.window", 10*time.Minute)
	v.SetDefault("server.analysisLimit.enabled", true)
	v.SetDefault("server.analysisLimit.perHour", 2)
	v.SetDefault("server.analysisLimit.perDay", 5)

	// AI - global defaults
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.model", "gemini-2.0-flash")
	v.SetDefault("ai.apiKey", "")
	v.SetDefault("ai.timeout", 40*time.Second)
	v.SetDefault("ai.maxRetries", 2)
	v.SetDefault("ai.generationBudget", 135*time.Second) // kept under server.writeTimeout
	v.SetDefault("ai.temperature", 0.4)
	v.SetDefault("ai.maxTokens", 4500)
	v.SetDefault("ai.useSystemPrompts", true)
	v.SetDefault("ai.anthropic.apiKey", "")
	v.SetDefault("ai.anthropic.model", "claude-sonnet-4-5")
	v.SetDefault("ai.anthropic.baseURL", "")

	v.SetDefault("ai.circuitBreaker.enabled", true)
	v.SetDefault("ai.circuitBreaker.maxRequests", 3)
	v.SetDefault("ai.circuitBreaker.interval", 60*time.Second)
	v.SetDefault("ai.circuitBreaker.timeout", 60*time.Second)
	v.SetDefault("ai.circuitBreaker.minRequests", 3)
	v.SetDefault("ai.circuitBreaker.failureThreshold", 0.6)

	// AI - operation overrides
	v.SetDefault("ai.cv.temperature", 0.3) // lower temperature keeps the CV close to its source
	v.SetDefault("ai.coverLetter.temperature", 0.6)
	v.SetDefault("ai.outreach.maxTokens", 2500)

	// Search
	v.SetDefault("search.endpoint", "https://api.tavily.com/search")
	v.SetDefault("search.apiKey", "")
	v.SetDefault("search.maxResults", 4)
	v.SetDefault("search.searchDepth", "basic")
	v.SetDefault("search.trustedDomains", DefaultTrustedDomains)
	v.SetDefault("search.timeout", 15*time.Second)
	v.SetDefault("search.maxRetries", 3)
	v.SetDefault("search.cache.enabled", true)
	v.SetDefault("search.cache.ttl", 6*time.Hour)
	v.SetDefault("search.cache.redisURL", "")
	v.SetDefault("search.cache.maxEntries", 500)
	v.SetDefault("search.cache.cleanupInterval", 10*time.Minute)

	// Intelligence
	v.SetDefault("intel.containerTimeout", 20*time.Second)
	v.SetDefault("intel.companyTips", true)
	v.SetDefault("intel.snippetLength", 400)
	v.SetDefault("intel.topN", 5)
	v.SetDefault("intel.threshold", 0.3)
	v.SetDefault("intel.minShared", 2)

	// Detection
	v.SetDefault("detect.maxGaps", 8)
	v.SetDefault("detect.maxQuestions", 6)
	v.SetDefault("detect.employmentGapMonths", 6)
	v.SetDefault("detect.lexiconFile", "")
	v.SetDefault("detect.watchLexicon", true)

	// Sessions
	v.SetDefault("session.ttl", time.Hour)
	v.SetDefault("session.sweepInterval", 5*time.Minute)

	// Vault
	v.SetDefault("vault.enabled", false)
	v.SetDefault("vault.address", "")
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.tokenFile", "")
	v.SetDefault("vault.namespace", "")
	v.SetDefault("vault.passwordPollInterval", time.Minute)
	v.SetDefault("vault.secrets.password", "")
	v.SetDefault("vault.secrets.geminiKey", "")
	v.SetDefault("vault.secrets.anthropicKey", "")
	v.SetDefault("vault.secrets.searchKey", "")

	// Observability
	v.SetDefault("observability.enabled", true)
	v.SetDefault("observability.serviceName", "applysharp")
	v.SetDefault("observability.serviceVersion", "")  // Will use app version if empty
	v.SetDefault("observability.serviceInstance", "") // Will be auto-generated if empty
	v.SetDefault("observability.consoleOutput", false)
	v.SetDefault("observability.tracing.enabled", true)
	v.SetDefault("observability.tracing.sampleRate", 1.0)
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.collectionInterval", 15*time.Second)
	v.SetDefault("observability.prometheus.enabled", true)
	v.SetDefault("observability.prometheus.endpoint", "/metrics")
	v.SetDefault("observability.prometheus.port", "9090")
	v.SetDefault("observability.otlp.enabled", false)
	v.SetDefault("observability.otlp.endpoint", "http://localhost:4318")
	v.SetDefault("observability.otlp.insecure", true)
	v.SetDefault("observability.otlp.headers", map[string]string{})

	// Prompts
	for _, op := range []Operation{OperationCV, OperationCoverLetter, OperationOutreach} {
		prefix := "prompts." + string(op)
		v.SetDefault(prefix+".system", "")
		v.SetDefault(prefix+".systemFile", "")
		v.SetDefault(prefix+".user", "")
		v.SetDefault(prefix+".userFile", "")
	}
}
