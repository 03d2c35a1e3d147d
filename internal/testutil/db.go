// Package testutil opens throwaway SQLite databases with the full schema
// and seeds the relationships most tests start from.
package testutil

import (
	"path/filepath"
	"testing"
	"time"

	"anoa.com/studyhub/internal/entity"
	"anoa.com/studyhub/pkg/database"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDB returns a migrated database backed by a file in t.TempDir. A single
// connection serialises transactions the way row locks would in Postgres.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "studyhub.db") + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func CreateUser(t testing.TB, db *gorm.DB, username string) *entity.User {
	t.Helper()
	u := &entity.User{Username: username, FullName: username + " Doe"}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

// CreateGroup stores a group with creator holding the creator rank.
func CreateGroup(t testing.TB, db *gorm.DB, name string, creator *entity.User) *entity.StudyGroup {
	t.Helper()
	g := &entity.StudyGroup{Name: name, CreatorID: creator.ID}
	if err := db.Create(g).Error; err != nil {
		t.Fatalf("create group %s: %v", name, err)
	}
	AddMember(t, db, g, creator, entity.RankCreator)
	return g
}

func AddMember(t testing.TB, db *gorm.DB, g *entity.StudyGroup, u *entity.User, rank entity.Rank) {
	t.Helper()
	m := &entity.GroupMembership{GroupID: g.ID, UserID: u.ID, Rank: rank}
	if err := db.Create(m).Error; err != nil {
		t.Fatalf("add member %s to %s: %v", u.Username, g.Name, err)
	}
}

func CreateChat(t testing.TB, db *gorm.DB, a, b *entity.User) *entity.PrivateChat {
	t.Helper()
	low, high := entity.OrderedPair(a.ID, b.ID)
	c := &entity.PrivateChat{ParticipantLow: low, ParticipantHigh: high}
	if err := db.Create(c).Error; err != nil {
		t.Fatalf("create chat: %v", err)
	}
	return c
}

func MakeFriends(t testing.TB, db *gorm.DB, a, b *entity.User) *entity.Friendship {
	t.Helper()
	f := &entity.Friendship{FromUserID: a.ID, ToUserID: b.ID, Status: entity.FriendshipAccepted}
	if err := db.Create(f).Error; err != nil {
		t.Fatalf("create friendship: %v", err)
	}
	return f
}

// Count returns the number of rows of model matching the optional query.
func Count(t testing.TB, db *gorm.DB, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	q := db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	if err := q.Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func Contains(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
