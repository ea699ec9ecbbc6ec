package repository

import (
	"context"
	"testing"

	"GuildFM/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// dryRunDB 只生成 SQL，不连接数据库
func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       "user:pass@tcp(127.0.0.1:3306)/guildfm?parseTime=true",
		SkipInitializeWithVersion: true,
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)
	return db
}

func TestHistoryRepository_RecentQuery(t *testing.T) {
	repo := &gormHistoryRepository{db: dryRunDB(t)}

	var rows []*model.PlayHistory
	stmt := repo.recentQuery(context.Background(), "g1", 5).Find(&rows).Statement
	sql := stmt.SQL.String()

	assert.Contains(t, sql, "`play_history`")
	assert.Contains(t, sql, "tenant_id = ?")
	assert.Contains(t, sql, "ORDER BY started_at DESC")
	assert.Contains(t, sql, "LIMIT")
	assert.Contains(t, stmt.Vars, "g1")
}

func TestHistoryRepository_RecentClampsLimit(t *testing.T) {
	repo := &gormHistoryRepository{db: dryRunDB(t)}

	for _, limit := range []int{0, -1, 1000} {
		var rows []*model.PlayHistory
		stmt := repo.recentQuery(context.Background(), "g1", limit).Find(&rows).Statement
		assert.Contains(t, stmt.Vars, MaxHistoryLimit, "limit=%d", limit)
	}
}
