package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	var cfg Config
	cfg.GreenAPI.InstanceID = "1101000001"
	cfg.GreenAPI.APIToken = "token"
	cfg.Database.Postgres.Host = "localhost"
	cfg.Database.Postgres.Database = "port_ops"
	return &cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := validConfig()
	applyDefaults(cfg)

	assert.Equal(t, "port-ops-bot", cfg.App.Name)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "gemini-2.5-flash", cfg.Gemini.Model)
	assert.InDelta(t, 0.3, cfg.Gemini.Temperature, 0.001)
	assert.Equal(t, 5000, cfg.Pipeline.QueryTimeout)
	assert.Equal(t, 86400, cfg.Pipeline.DedupWindow)
	assert.Equal(t, "ops_knowledge", cfg.Knowledge.Index)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 9090
	cfg.Pipeline.QueryTimeout = 2000
	applyDefaults(cfg)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 2000, cfg.Pipeline.QueryTimeout)
}

func TestValidateConfig(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		require.NoError(t, validateConfig(validConfig()))
	})

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "missing instance id", mutate: func(c *Config) { c.GreenAPI.InstanceID = "" }},
		{name: "missing api token", mutate: func(c *Config) { c.GreenAPI.APIToken = "" }},
		{name: "missing postgres host", mutate: func(c *Config) { c.Database.Postgres.Host = "" }},
		{name: "missing postgres database", mutate: func(c *Config) { c.Database.Postgres.Database = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, validateConfig(cfg))
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{
		Host: "db", Port: 5432, User: "bot", Password: "secret",
		Database: "port_ops", SSLMode: "disable",
	}
	assert.Equal(t,
		"host=db port=5432 user=bot password=secret dbname=port_ops sslmode=disable",
		p.GetDSN())
}

func TestElasticsearchURL(t *testing.T) {
	assert.Equal(t, "http://es:9200", ElasticsearchConfig{URL: "http://es:9200"}.GetURL())
	assert.Equal(t, "http://a:9200", ElasticsearchConfig{Addresses: []string{"http://a:9200", "http://b:9200"}}.GetURL())
	assert.Equal(t, "", ElasticsearchConfig{}.GetURL())
}
