package secretmanager

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSecretsString(t *testing.T) {
	s := Secrets{"postgres_user": "loyalty", "port": 5432}

	require.Equal(t, "loyalty", s.String("postgres_user"))
	require.Empty(t, s.String("port"))
	require.Empty(t, s.String("missing"))
}
