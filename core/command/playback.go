package command

import (
	"context"
	"fmt"

	"GuildFM/core/node"
	"GuildFM/core/queue"
	"GuildFM/core/reconciler"
	"GuildFM/core/utils"
	"GuildFM/logger"
	"GuildFM/model"
)

// ========== join / leave ==========

type joinCommand struct{ d *Deps }

func (c *joinCommand) Name() string { return "join" }
func (c *joinCommand) Description() string { return "Join a voice channel" }

func (c *joinCommand) Execute(_ context.Context, req *Request) (*Response, error) {
	channel := req.Arg("channel")
	if channel == "" {
		return reply("You need to be in a voice channel to use this command")
	}
	c.d.Voice.Join(req.TenantID, channel)
	return reply(fmt.Sprintf("Joined <#%s>", channel))
}

type leaveCommand struct{ d *Deps }

func (c *leaveCommand) Name() string { return "leave" }
func (c *leaveCommand) Description() string { return "Leave a voice channel" }

func (c *leaveCommand) Execute(ctx context.Context, req *Request) (*Response, error) {
	if !c.d.inVoice(req.TenantID) {
		return reply(msgNotInVoice)
	}

	if q, ok := c.d.Registry.Get(req.TenantID); ok {
		q.Clear()
		c.d.refreshMirror(ctx, req.TenantID, q)
	}
	c.d.Voice.Leave(req.TenantID)

	if err := c.d.Node.Destroy(ctx, req.TenantID); err != nil {
		return nil, fmt.Errorf("%w: destroy: %w", reconciler.ErrNodeCommandFailed, err)
	}
	return reply("Left channel")
}

// ========== play ==========

type playCommand struct{ d *Deps }

func (c *playCommand) Name() string { return "play" }
func (c *playCommand) Description() string {
	return "Play a track from link or search for it on youtube"
}

func (c *playCommand) Execute(ctx context.Context, req *Request) (*Response, error) {
	if !c.d.inVoice(req.TenantID) {
		return reply(msgNotInVoice)
	}
	query := req.Arg("query")
	if query == "" {
		return nil, fmt.Errorf("%w: query", ErrMissingArgument)
	}

	loaded, err := c.d.Node.Resolve(ctx, node.SearchIdentifier(query))
	if err != nil {
		logger.Warn("failed to resolve query",
			logger.Tenant(req.TenantID),
			logger.String("query", query),
			logger.ErrorField(err))
		return reply("Failed to load track")
	}

	var (
		tracks []model.Track
		embed  *model.Embed
	)
	switch loaded.LoadType {
	case node.LoadFailed:
		return reply("Failed to load track")
	case node.LoadNoMatches:
		return reply("No results found")
	case node.LoadPlaylistLoaded:
		if len(loaded.Tracks) == 0 {
			return reply("No results found")
		}
		for _, t := range loaded.Tracks {
			tracks = append(tracks, model.NewTrack(t.Track, t.Info, req.NotifyTarget))
		}
		name := model.UnknownPlaceholder
		if loaded.PlaylistInfo.Name != nil {
			name = *loaded.PlaylistInfo.Name
		}
		embed = model.NewEmbed("Loaded playlist")
		embed.Description = fmt.Sprintf("**%s**", name)
		embed.Footer = fmt.Sprintf("%d tracks", len(tracks))
	case node.LoadTrackLoaded, node.LoadSearchResult:
		if len(loaded.Tracks) == 0 {
			return reply("Failed to process track")
		}
		first := loaded.Tracks[0]
		track := model.NewTrack(first.Track, first.Info, req.NotifyTarget)
		tracks = append(tracks, track)
		embed = model.NewEmbed("Track queued")
		embed.Description = fmt.Sprintf("**%s**\nBy **%s**", utils.TrackLink(track), track.DisplayAuthor())
	default:
		return reply("Failed to load track")
	}

	q := c.d.Registry.GetOrCreate(req.TenantID)
	var (
		wasEmpty bool
		head     model.Track
	)
	q.Do(func(l *queue.Locked) {
		wasEmpty = l.IsEmpty()
		for _, t := range tracks {
			l.Push(t)
		}
		head, _ = l.Peek()
	})
	c.d.refreshMirror(ctx, req.TenantID, q)

	// 只有原本空闲时才开始播放，否则等待当前曲目结束
	if wasEmpty {
		if err := c.d.Node.Play(ctx, req.TenantID, head.Handle); err != nil {
			return nil, fmt.Errorf("%w: play %s: %w", reconciler.ErrNodeCommandFailed, head.Handle, err)
		}
	}
	return replyEmbed(embed)
}

// ========== skip / stop ==========

type skipCommand struct{ d *Deps }

func (c *skipCommand) Name() string { return "skip" }
func (c *skipCommand) Description() string { return "Skips the current track" }

func (c *skipCommand) Execute(ctx context.Context, req *Request) (*Response, error) {
	if !c.d.inVoice(req.TenantID) {
		return reply(msgNotInVoice)
	}
	q, ok := c.d.Registry.Get(req.TenantID)
	if !ok {
		return reply(msgNoQueue)
	}
	if q.IsEmpty() {
		return reply("No more tracks to skip")
	}

	// 节点随后推送 TrackEnd(STOPPED)，由 reconciler 推进队列
	if err := c.d.Node.Stop(ctx, req.TenantID); err != nil {
		return nil, fmt.Errorf("%w: stop: %w", reconciler.ErrNodeCommandFailed, err)
	}
	return reply("Skipped current track")
}

type stopCommand struct{ d *Deps }

func (c *stopCommand) Name() string { return "stop" }
func (c *stopCommand) Description() string { return "Stop and clears the queue" }

func (c *stopCommand) Execute(ctx context.Context, req *Request) (*Response, error) {
	if !c.d.inVoice(req.TenantID) {
		return reply(msgNotInVoice)
	}
	q, ok := c.d.Registry.Get(req.TenantID)
	if !ok {
		return reply(msgNoQueue)
	}

	// 先清空再停止，随后的 TrackEnd 落在空队列上不会再播放下一首
	q.Clear()
	c.d.refreshMirror(ctx, req.TenantID, q)
	if err := c.d.Node.Stop(ctx, req.TenantID); err != nil {
		return nil, fmt.Errorf("%w: stop: %w", reconciler.ErrNodeCommandFailed, err)
	}
	return reply("Stopped current queue")
}

// ========== pause / resume ==========

type pauseCommand struct {
	d     *Deps
	pause bool
}

func (c *pauseCommand) Name() string {
	if c.pause {
		return "pause"
	}
	return "resume"
}

func (c *pauseCommand) Description() string {
	if c.pause {
		return "Pause the current track"
	}
	return "Resume the current track"
}

func (c *pauseCommand) Execute(ctx context.Context, req *Request) (*Response, error) {
	if !c.d.inVoice(req.TenantID) {
		return reply(msgNotInVoice)
	}

	paused := c.d.Node.Paused(req.TenantID)
	if c.pause && paused {
		return reply("Already paused")
	}
	if !c.pause && !paused {
		return reply("Already playing")
	}

	if err := c.d.Node.Pause(ctx, req.TenantID, c.pause); err != nil {
		return nil, fmt.Errorf("%w: pause: %w", reconciler.ErrNodeCommandFailed, err)
	}
	if c.pause {
		return reply("Paused track")
	}
	return reply("Resumed track")
}
