package models

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"waiting", "in_transit", "delivered"} {
		got, err := ParseStatus(s)
		require.NoError(t, err)
		require.Equal(t, s, got.String())
	}

	for _, s := range []string{"", "WAITING", "in transit", "lost", "not_found"} {
		_, err := ParseStatus(s)
		require.Error(t, err)
	}
}

func TestStatusValid(t *testing.T) {
	require.True(t, StatusDelivered.Valid())
	require.False(t, Status("returned").Valid())
}
