package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrack_DisplayPlaceholders(t *testing.T) {
	track := NewTrack("h1", TrackInfo{URI: "https://example.com"}, "chan")

	assert.Equal(t, UnknownPlaceholder, track.DisplayTitle())
	assert.Equal(t, UnknownPlaceholder, track.DisplayAuthor())

	track.Info.Title = StringPtr("Song")
	track.Info.Author = StringPtr("Artist")
	assert.Equal(t, "Song", track.DisplayTitle())
	assert.Equal(t, "Artist", track.DisplayAuthor())
}

func TestTrack_RemainingMs(t *testing.T) {
	track := NewTrack("h1", TrackInfo{Length: 180_000}, "chan")

	assert.Equal(t, uint64(180_000), track.RemainingMs(0))
	assert.Equal(t, uint64(60_000), track.RemainingMs(120_000))
	assert.Equal(t, uint64(0), track.RemainingMs(180_000))
	assert.Equal(t, uint64(0), track.RemainingMs(200_000))
}

func TestTrack_Equal(t *testing.T) {
	a := NewTrack("h1", TrackInfo{Title: StringPtr("Song"), Length: 1000}, "chan")
	b := NewTrack("h1", TrackInfo{Title: StringPtr("Song"), Length: 1000}, "chan")
	assert.True(t, a.Equal(b))

	b.Info.Title = nil
	assert.False(t, a.Equal(b))

	c := a
	c.NotifyTarget = "other"
	assert.False(t, a.Equal(c))
}

func TestTrack_JSONUsesNodeFieldNames(t *testing.T) {
	track := NewTrack("QAAAjQIAJVJpY2sg", TrackInfo{Title: StringPtr("Song"), Length: 1000}, "chan")

	data, err := json.Marshal(track)
	require.NoError(t, err)

	assert.Contains(t, string(data), `"track":"QAAAjQIAJVJpY2sg"`)
	assert.Contains(t, string(data), `"notifyTarget":"chan"`)
	assert.NotContains(t, string(data), `"author"`)
}

func TestNewPlayHistory(t *testing.T) {
	track := NewTrack("h1", TrackInfo{Identifier: "id1", Title: StringPtr("Song"), URI: "u", Length: 5000}, "chan")

	h := NewPlayHistory("g1", track)

	assert.Equal(t, "g1", h.TenantID)
	assert.Equal(t, "Song", h.Title)
	assert.Equal(t, UnknownPlaceholder, h.Author)
	assert.Equal(t, uint64(5000), h.LengthMs)
	assert.Equal(t, "chan", h.NotifyTarget)
	assert.False(t, h.StartedAt.IsZero())
	assert.Equal(t, "play_history", h.TableName())
}
