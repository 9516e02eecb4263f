package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.GenerationTimeout)
	assert.Equal(t, 10*time.Minute, cfg.GridCache.TTL)
	assert.False(t, cfg.GridCache.Enabled)
	assert.False(t, cfg.Database.AutoMigrate)
	assert.Equal(t, time.Hour, cfg.Database.ConnMaxLifetime)
	assert.Nil(t, cfg.CORS.AllowedOrigins)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("SCHEDULER_GENERATION_TIMEOUT", "5s")
	v.Set("GRID_CACHE_TTL", "not-a-duration")
	v.Set("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	v.Set("DB_AUTO_MIGRATE", true)

	cfg := fromViper(v)

	assert.Equal(t, 5*time.Second, cfg.Scheduler.GenerationTimeout)
	assert.Equal(t, 10*time.Minute, cfg.GridCache.TTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.True(t, cfg.Database.AutoMigrate)
}

func TestParseDurationRejectsNonPositive(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("-5s", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("0s", time.Minute))
	assert.Equal(t, 2*time.Second, parseDuration("2s", time.Minute))
}
