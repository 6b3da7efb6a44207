package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimeParsing(t *testing.T) {
	assert := assert.New(t)

	good := []string{
		"2024-07-19T21:54:14.165300Z",
		"2024-07-19T21:54:14.163Z",
		"2024-07-19T21:52:02.000+00:00",
		"2024-07-19T21:52:02.123456+00:00",
		"2024-09-13T11:23:33+09:00",
		"2024-09-13T11:23:33Z",
	}
	for _, g := range good {
		_, err := ParseTimestamp(g)
		assert.NoError(err, g)
	}

	ts, err := ParseTimestamp("2024-07-19T21:54:14.163Z")
	assert.NoError(err)
	assert.Equal(time.Date(2024, 7, 19, 21, 54, 14, 163_000_000, time.UTC), ts)

	ts, err = ParseTimestamp("1721426054163")
	assert.NoError(err)
	assert.True(ts.Equal(time.UnixMilli(1721426054163)), ts)

	_, err = ParseTimestamp("2024-07-19 21:54:14")
	assert.NoError(err)

	_, err = ParseTimestamp("yesterday")
	assert.Error(err)
}
