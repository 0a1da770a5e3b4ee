package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShardFor(t *testing.T) {
	// 81384788765712384 >> 22 == 19403645698
	assert.Equal(t, 0, ShardFor("81384788765712384", 1))
	assert.Equal(t, 2, ShardFor("81384788765712384", 4))
	assert.Equal(t, 0, ShardFor("not-a-snowflake", 4))
	assert.Equal(t, 0, ShardFor("81384788765712384", 0))
}

func TestPresenceText(t *testing.T) {
	assert.Equal(t, "shard #1 • 12 servers", presenceText(0, 12, 0))
	assert.Equal(t, "shard #3 • 4 servers • 2 playing", presenceText(2, 4, 2))
}
