package command

import (
	"context"
	"fmt"
	"strconv"

	"GuildFM/core/utils"
	"GuildFM/model"
)

const defaultHistoryLimit = 10

// ========== export ==========

type exportCommand struct{ d *Deps }

func (c *exportCommand) Name() string { return "export" }
func (c *exportCommand) Description() string { return "Export the queue as an M3U playlist" }

func (c *exportCommand) Execute(ctx context.Context, req *Request) (*Response, error) {
	if c.d.Exporter == nil {
		return reply(msgUnavailable)
	}
	q, ok := c.d.Registry.Get(req.TenantID)
	if !ok {
		return reply(msgNoQueue)
	}
	tracks := q.Snapshot()
	if len(tracks) == 0 {
		return reply(msgEmptyQueue)
	}

	exp, err := c.d.Exporter.Export(ctx, req.TenantID, tracks)
	if err != nil {
		return nil, fmt.Errorf("export queue: %w", err)
	}

	embed := model.NewEmbed("Queue exported")
	embed.Description = fmt.Sprintf("[Download playlist](%s)", exp.URL)
	embed.Footer = fmt.Sprintf("%d tracks, link expires %s", exp.Tracks, exp.ExpiresAt.UTC().Format("2006-01-02 15:04 UTC"))
	return replyEmbed(embed)
}

// ========== history ==========

type historyCommand struct{ d *Deps }

func (c *historyCommand) Name() string { return "history" }
func (c *historyCommand) Description() string { return "Shows recently played tracks" }

func (c *historyCommand) Execute(ctx context.Context, req *Request) (*Response, error) {
	if c.d.History == nil {
		return reply(msgUnavailable)
	}

	limit := defaultHistoryLimit
	if raw := req.Arg("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return reply("Limit must be a positive number")
		}
		limit = n
	}

	rows, err := c.d.History.Recent(ctx, req.TenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	if len(rows) == 0 {
		return reply("Nothing played yet")
	}

	embed := model.NewEmbed("Recently played")
	for i, h := range rows {
		embed.AddField(zeroWidthSpace, fmt.Sprintf("**%d: [%s](%s) by %s - %s**",
			i+1, h.Title, h.URI, h.Author, utils.FormatMillis(h.LengthMs)))
	}
	return replyEmbed(embed)
}
