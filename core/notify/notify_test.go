package notify

import (
	"context"
	"errors"
	"testing"

	"GuildFM/core/utils"
	"GuildFM/model"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	f.sent = append(f.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

type recorder struct {
	targets []string
}

func (r *recorder) Notify(_ context.Context, target string, _ model.Notification) error {
	r.targets = append(r.targets, target)
	return nil
}

func TestRouter_RoutesByPrefix(t *testing.T) {
	hub, tg := &recorder{}, &recorder{}
	r := NewRouter(hub, tg)

	require.NoError(t, r.Notify(context.Background(), "music", model.Notification{}))
	require.NoError(t, r.Notify(context.Background(), "tg:-100123", model.Notification{}))

	assert.Equal(t, []string{"music"}, hub.targets)
	assert.Equal(t, []string{"tg:-100123"}, tg.targets)
}

func TestRouter_TelegramDisabled(t *testing.T) {
	r := NewRouter(&recorder{}, nil)

	err := r.Notify(context.Background(), "tg:1", model.Notification{})

	assert.ErrorIs(t, err, ErrNoBackend)
}

func TestTelegram_Notify(t *testing.T) {
	sender := &fakeSender{}
	tg := &Telegram{bot: sender}
	embed := model.NewEmbed("Now playing").AddField("Up next", "2 tracks")

	err := tg.Notify(context.Background(), "tg:42", model.Notification{Embed: embed})

	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, int64(42), sender.sent[0].ChatID)
	assert.Equal(t, tgbotapi.ModeMarkdownV2, sender.sent[0].ParseMode)
	assert.Equal(t, "*Now playing*\n_Up next_: 2 tracks", sender.sent[0].Text)
}

func TestRenderMarkdown_EscapesTrack(t *testing.T) {
	track := model.NewTrack("h1", model.TrackInfo{
		Title:  model.StringPtr("lo_fi *beats* [live]"),
		Author: model.StringPtr("dj_x"),
		URI:    "https://y.t/v?a_b=1",
	}, "tg:42")
	n := model.Notification{Embed: utils.NowPlayingEmbed(track), Track: &track}

	got := RenderMarkdown(n)

	assert.Equal(t, "*Now playing*\n[lo\\_fi \\*beats\\* \\[live\\]](https://y.t/v?a_b=1)\nBy *dj\\_x*", got)
	assert.NotContains(t, got, "**")
}

func TestRenderMarkdown_EscapesPlainText(t *testing.T) {
	embed := model.NewEmbed("Queue (2)")
	embed.Description = "**[Song](https://example.com/a_b)**"
	embed.Footer = "v1.0!"

	got := RenderMarkdown(model.Notification{Content: `a\b`, Embed: embed})

	assert.Equal(t, "a\\\\b\n\n*Queue \\(2\\)*\n\\*\\*\\[Song\\]\\(https://example\\.com/a\\_b\\)\\*\\*\nv1\\.0\\!", got)
}

func TestRenderMarkdown_LinkEscaping(t *testing.T) {
	track := model.NewTrack("h1", model.TrackInfo{Title: model.StringPtr("Song"), URI: `https://x.y/a)b\c`}, "tg:1")

	assert.Equal(t, "[Song](https://x.y/a\\)b\\\\c)\nBy *Unknown*", trackMarkdown(track))
}

func TestTelegram_NotifyErrors(t *testing.T) {
	tg := &Telegram{bot: &fakeSender{err: errors.New("flood")}}

	err := tg.Notify(context.Background(), "tg:42", model.Notification{Content: "End of queue"})
	assert.ErrorContains(t, err, "flood")

	err = tg.Notify(context.Background(), "tg:abc", model.Notification{})
	assert.ErrorIs(t, err, ErrInvalidTarget)
}

func TestRenderMarkdown_ContentOnly(t *testing.T) {
	assert.Equal(t, "End of queue", RenderMarkdown(model.Notification{Content: "End of queue"}))
}
