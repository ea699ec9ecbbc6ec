package utils

import (
	"fmt"

	"GuildFM/model"
)

// FormatMillis 把毫秒格式化为 m:ss，秒数四舍五入，满 60 秒进位到分钟
func FormatMillis(ms uint64) string {
	minutes := ms / 60000
	seconds := (ms%60000 + 500) / 1000
	if seconds == 60 {
		minutes++
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}

// TrackLink 标题链接到曲目 URI 的 Markdown
func TrackLink(track model.Track) string {
	return fmt.Sprintf("[%s](%s)", track.DisplayTitle(), track.Info.URI)
}

// NowPlayingEmbed 曲目开始播放时发送的卡片
func NowPlayingEmbed(track model.Track) *model.Embed {
	embed := model.NewEmbed("Now playing")
	embed.Description = fmt.Sprintf("**%s**\nBy **%s**", TrackLink(track), track.DisplayAuthor())
	return embed
}

// EndOfQueueEmbed 队列播放完毕时发送的卡片
func EndOfQueueEmbed() *model.Embed {
	return model.NewEmbed("End of queue")
}
