package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextCronTime(t *testing.T) {
	from := time.Date(2025, 3, 10, 12, 7, 0, 0, time.UTC)

	next, err := NextCronTime("*/15 * * * *", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 10, 12, 15, 0, 0, time.UTC), next)

	next, err = NextCronTime("0 3 * * *", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 11, 3, 0, 0, 0, time.UTC), next)
}

func TestValidateCronExpr(t *testing.T) {
	assert.NoError(t, ValidateCronExpr("*/15 * * * *"))
	assert.Error(t, ValidateCronExpr("every fifteen minutes"))
	// Seconds field is not part of the dialect.
	assert.Error(t, ValidateCronExpr("0 */15 * * * *"))
}
