package config

import "time"

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		LLM:        DefaultLLMConfig(),
		Agent:      DefaultAgentConfig(),
		Swarm:      DefaultSwarmConfig(),
		GuardRails: DefaultGuardRailsConfig(),
		Orders:     DefaultOrdersConfig(),
		Session:    DefaultSessionConfig(),
		Redis:      DefaultRedisConfig(),
		Mongo:      DefaultMongoConfig(),
		Database:   DefaultDatabaseConfig(),
		MCP:        DefaultMCPConfig(),
		Log:        DefaultLogConfig(),
		Telemetry:  DefaultTelemetryConfig(),
		Metrics:    DefaultMetricsConfig(),
	}
}

func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:    "gemini",
		Model:       "gemini-2.5-flash",
		Temperature: 0.7,
		Timeout:     60 * time.Second,
		MaxRetries:  2,
	}
}

func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		MaxCycles:   20,
		ToolTimeout: 30 * time.Second,
		WindowSize:  40,
	}
}

func DefaultSwarmConfig() SwarmConfig {
	return SwarmConfig{
		MaxHandoffs:      5,
		MaxIterations:    10,
		ExecutionTimeout: 300 * time.Second,
		NodeTimeout:      120 * time.Second,
	}
}

func DefaultGuardRailsConfig() GuardRailsConfig {
	return GuardRailsConfig{
		Enabled:           true,
		MinQueryLength:    5,
		MaxQueryLength:    1000,
		RequestsPerMinute: 30,
		RequestsPerHour:   300,
	}
}

func DefaultOrdersConfig() OrdersConfig {
	return OrdersConfig{
		Source:  "csv",
		CSVPath: "orders.csv",
	}
}

func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Backend:   "file",
		Dir:       "./sessions",
		KeyPrefix: "agentswarm:session:",
	}
}

func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

func DefaultMongoConfig() MongoConfig {
	return MongoConfig{
		URI:        "mongodb://localhost:27017",
		Database:   "agentswarm",
		Collection: "session_messages",
		Timeout:    10 * time.Second,
	}
}

func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "sqlite",
		Host:            "localhost",
		Port:            5432,
		User:            "agentswarm",
		Name:            "agentswarm.db",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

func DefaultMCPConfig() MCPConfig {
	return MCPConfig{
		CalculatorCommand: "calculator-mcp",
		OrdersCommand:     "order-mcp",
		StartTimeout:      30 * time.Second,
	}
}

func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		EnableCaller:     false,
		EnableStacktrace: false,
	}
}

func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "agentswarm",
		SampleRate:   0.1,
	}
}

func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Enabled:   false,
		Addr:      ":9091",
		Namespace: "agentswarm",
	}
}
