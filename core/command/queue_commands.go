package command

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"GuildFM/core/queue"
	"GuildFM/core/utils"
	"GuildFM/model"
)

// TracksPerPage queue 命令每页条数
const TracksPerPage = 10

// zeroWidthSpace 卡片字段的空标题
const zeroWidthSpace = "\u200b"

// ========== shuffle ==========

type shuffleCommand struct{ d *Deps }

func (c *shuffleCommand) Name() string { return "shuffle" }
func (c *shuffleCommand) Description() string {
	return "Shuffles the upcoming tracks, the current track keeps playing"
}

func (c *shuffleCommand) Execute(ctx context.Context, req *Request) (*Response, error) {
	if !c.d.inVoice(req.TenantID) {
		return reply(msgNotInVoice)
	}
	q, ok := c.d.Registry.Get(req.TenantID)
	if !ok {
		return reply(msgNoQueue)
	}

	empty := false
	q.Do(func(l *queue.Locked) {
		if l.IsEmpty() {
			empty = true
			return
		}
		l.ShuffleUpcoming()
	})
	if empty {
		return reply(msgEmptyQueue)
	}
	c.d.refreshMirror(ctx, req.TenantID, q)
	return reply("Shuffled current queue")
}

// ========== queue ==========

type queueCommand struct{ d *Deps }

func (c *queueCommand) Name() string { return "queue" }
func (c *queueCommand) Description() string { return "Shows the current queue" }

func (c *queueCommand) Execute(_ context.Context, req *Request) (*Response, error) {
	if !c.d.inVoice(req.TenantID) {
		return reply(msgNotInVoice)
	}
	q, ok := c.d.Registry.Get(req.TenantID)
	if !ok {
		return reply(msgNoQueue)
	}

	page := 1
	if raw := req.Arg("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return reply("Page must be a number")
		}
		page = n
	}

	tracks := q.Snapshot()
	if len(tracks) == 0 {
		return reply(msgEmptyQueue)
	}

	embed, err := QueuePage(tracks, page)
	if err != nil {
		return reply(err.Error())
	}
	return replyEmbed(embed)
}

// errPageOutOfBounds 页码越界，错误文本直接回复给用户
type errPageOutOfBounds struct{ pages int }

func (e errPageOutOfBounds) Error() string {
	return fmt.Sprintf("Page out of bounds, use a value between 1 and %d", e.pages)
}

// QueuePage renders one page of the queue. Entries are numbered from 1, the playing track first.
func QueuePage(tracks []model.Track, page int) (*model.Embed, error) {
	pages := (len(tracks) + TracksPerPage - 1) / TracksPerPage
	if page < 1 || page > pages {
		return nil, errPageOutOfBounds{pages: pages}
	}

	embed := model.NewEmbed("Upcoming tracks")
	embed.Footer = fmt.Sprintf("Page %d out of %d", page, pages)

	begin := (page - 1) * TracksPerPage
	end := min(begin+TracksPerPage, len(tracks))
	for i := begin; i < end; i++ {
		t := tracks[i]
		embed.AddField(zeroWidthSpace, fmt.Sprintf("**%d: %s - %s**", i+1, t.DisplayTitle(), utils.FormatMillis(t.LengthMs())))
	}
	return embed, nil
}

// ========== np ==========

type nowPlayingCommand struct{ d *Deps }

func (c *nowPlayingCommand) Name() string { return "np" }
func (c *nowPlayingCommand) Description() string { return "Shows the current playing track" }

func (c *nowPlayingCommand) Execute(_ context.Context, req *Request) (*Response, error) {
	if !c.d.inVoice(req.TenantID) {
		return reply(msgNotInVoice)
	}
	q, ok := c.d.Registry.Get(req.TenantID)
	if !ok {
		return reply(msgNoQueue)
	}

	head, err := q.Peek()
	if errors.Is(err, queue.ErrEmptyQueue) {
		return reply(msgEmptyQueue)
	}

	remaining := head.RemainingMs(c.d.Node.Position(req.TenantID))
	embed := model.NewEmbed("Now playing")
	embed.AddField(zeroWidthSpace, fmt.Sprintf("**%s by %s**", head.DisplayTitle(), head.DisplayAuthor()))
	if head.Info.IsStream {
		embed.Footer = "Live stream"
	} else {
		embed.Footer = "Remaining time: " + utils.FormatMillis(remaining)
	}
	return replyEmbed(embed)
}

// ========== loop ==========

type loopCommand struct{ d *Deps }

func (c *loopCommand) Name() string { return "loop" }
func (c *loopCommand) Description() string { return "Sets the loop mode of the queue" }

func (c *loopCommand) Execute(ctx context.Context, req *Request) (*Response, error) {
	if !c.d.inVoice(req.TenantID) {
		return reply(msgNotInVoice)
	}
	mode, err := model.ParseLoopMode(req.Arg("mode"))
	if err != nil {
		return reply("Invalid loop mode, use none, queue or track")
	}
	q, ok := c.d.Registry.Get(req.TenantID)
	if !ok {
		return reply(msgNoQueue)
	}

	q.SetLoopMode(mode)
	c.d.refreshMirror(ctx, req.TenantID, q)

	switch mode {
	case model.LoopQueue:
		return reply("Looping the whole queue")
	case model.LoopTrack:
		return reply("Looping the current track")
	default:
		return reply("Not looping")
	}
}
