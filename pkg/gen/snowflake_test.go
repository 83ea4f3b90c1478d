package gen

import (
	"testing"

	"smallbiznis-loyaltycore/pkg/config"

	"github.com/stretchr/testify/require"
)

func TestNewSnowflakeNode(t *testing.T) {
	cfg := &config.Config{}
	cfg.Snowflake.NodeID = 7

	node, err := NewSnowflakeNode(cfg)
	require.NoError(t, err)
	require.Equal(t, int64(7), node.Generate().Node())

	cfg.Snowflake.NodeID = 5000
	_, err = NewSnowflakeNode(cfg)
	require.Error(t, err)
}
