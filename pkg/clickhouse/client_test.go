package clickhouse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildDSN(t *testing.T) {
	dsn := BuildDSN(ClientConfig{
		Host:        "ch",
		Port:        9000,
		Database:    "trading",
		User:        "u",
		Password:    "p",
		DialTimeout: 5 * time.Second,
		AsyncInsert: true,
	})
	assert.Equal(t, "clickhouse://u:p@ch:9000/trading?async_insert=1&dial_timeout=5s", dsn)

	dsn = BuildDSN(ClientConfig{Host: "ch", Port: 8123, Database: "default", UseHTTP: true})
	assert.Equal(t, "http://ch:8123/default", dsn)
}
