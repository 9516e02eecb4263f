package database

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-timetable-api/pkg/config"
)

func TestConfigureAppliesPoolLimits(t *testing.T) {
	raw, _, err := sqlmock.New()
	require.NoError(t, err)
	db := sqlx.NewDb(raw, "sqlmock")
	defer db.Close()

	Configure(db, config.DatabaseConfig{MaxOpenConns: 7, ConnMaxLifetime: time.Minute})

	assert.Equal(t, 7, db.Stats().MaxOpenConnections)
}
