// Package testutil 测试公共工具：sqlite 数据库、miniredis、数据构造和请求辅助
package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"Coop_Voting/internal/model"
	"Coop_Voting/internal/repository/mysql"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// TestPassword 所有种子用户的密码
const TestPassword = "password123"

var unitSeq atomic.Int64

// SetupTestDB 每个测试一个独立的 sqlite 文件，已完成建表
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db") + "?_pragma=busy_timeout(5000)"
	db, err := mysql.Open("sqlite", dsn)
	require.NoError(t, err, "open test database")
	require.NoError(t, mysql.Migrate(db), "migrate test database")
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func SetupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func CreateTestCooperative(t *testing.T, db *gorm.DB, name string, resultsVisible bool) *model.Cooperative {
	t.Helper()
	c := &model.Cooperative{Name: name, Address: name + " street 1", ResultsVisibleToPresident: resultsVisible}
	require.NoError(t, db.Create(c).Error)
	return c
}

// CreateTestUser coop 为 nil 表示超级管理员
func CreateTestUser(t *testing.T, db *gorm.DB, coop *model.Cooperative, role model.Role, username string) *model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	require.NoError(t, err)
	u := &model.User{
		Username: username,
		Name:     "Name " + username,
		Email:    username + "@example.com",
		Password: string(hash),
		Role:     role,
	}
	if coop != nil {
		id := coop.ID
		u.CooperativeID = &id
		u.UnitNumber = fmt.Sprintf("U%d", unitSeq.Add(1))
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// CreateTestPoll 直接写库，允许构造已经截止的投票
func CreateTestPoll(t *testing.T, db *gorm.DB, coop *model.Cooperative, creator *model.User, title string, closesAt time.Time, options ...string) *model.Poll {
	t.Helper()
	p := &model.Poll{
		CooperativeID: coop.ID,
		Title:         title,
		CreatedAt:     time.Now().UTC().Add(-time.Hour),
		ClosesAt:      closesAt.UTC(),
	}
	if creator != nil {
		id := creator.ID
		p.CreatorID = &id
	}
	for _, text := range options {
		p.Options = append(p.Options, model.Option{Text: text})
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

// OptionCounts 读回每个选项的冗余计数，按选项 id 顺序
func OptionCounts(t *testing.T, db *gorm.DB, pollID uint64) []int64 {
	t.Helper()
	var counts []int64
	require.NoError(t, db.Model(&model.Option{}).Where("poll_id = ?", pollID).Order("id ASC").Pluck("vote_count", &counts).Error)
	return counts
}

func CountVotes(t *testing.T, db *gorm.DB, pollID uint64) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&model.Vote{}).Where("poll_id = ?", pollID).Count(&n).Error)
	return n
}

// MakeRequest body 非 nil 时按 JSON 编码
func MakeRequest(t *testing.T, h http.Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func DecodeJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), "body: %s", w.Body.String())
}
