package utils

import (
	"testing"

	"GuildFM/model"

	"github.com/stretchr/testify/assert"
)

func TestFormatMillis(t *testing.T) {
	cases := map[uint64]string{
		0:       "0:00",
		999:     "0:01",
		9_000:   "0:09",
		61_000:  "1:01",
		59_600:  "1:00",
		119_700: "2:00",
		754_000: "12:34",
	}
	for ms, want := range cases {
		assert.Equal(t, want, FormatMillis(ms), "ms=%d", ms)
	}
}

func TestNowPlayingEmbed(t *testing.T) {
	track := model.NewTrack("A", model.TrackInfo{
		Title: model.StringPtr("Song"),
		URI:   "https://example.com/song",
	}, "music")

	embed := NowPlayingEmbed(track)

	assert.Equal(t, "Now playing", embed.Title)
	assert.Equal(t, model.EmbedColor, embed.Color)
	assert.Equal(t, "**[Song](https://example.com/song)**\nBy **<UNKNOWN>**", embed.Description)
}
