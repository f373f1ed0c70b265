package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeltLevelLabelKnownCodes(t *testing.T) {
	assert.Equal(t, "White Belt", BeltWhite.Label())
	assert.Equal(t, "Black 2nd Dan", BeltBlack2ndDan.Label())
	assert.Equal(t, "Red-Black Belt", BeltRedBlack.Label())
}

func TestBeltLevelLabelFallback(t *testing.T) {
	assert.Equal(t, "Unknown Rank", BeltLevel("unknown_rank").Label())
	assert.Equal(t, "Black 6th Dan", BeltLevel("black_6th_dan").Label())
}

func TestBeltLevelNext(t *testing.T) {
	next, ok := BeltWhite.Next()
	require.True(t, ok)
	assert.Equal(t, BeltYellowStripe, next)

	next, ok = BeltRedBlack.Next()
	require.True(t, ok)
	assert.Equal(t, BeltBlack1stDan, next)

	_, ok = BeltBlack5thDan.Next()
	assert.False(t, ok)

	_, ok = BeltLevel("unknown_rank").Next()
	assert.False(t, ok)
}

func TestBeltLevelOrderCoversAllLabels(t *testing.T) {
	levels := AllBeltLevels()
	require.Len(t, levels, 15)
	for _, level := range levels {
		assert.True(t, level.Valid())
	}
}
