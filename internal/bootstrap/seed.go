package bootstrap

import (
	"errors"
	"fmt"

	"anoa.com/studyhub/internal/entity"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type seedUser struct {
	Username string
	FullName string
	Course   string
	Year     int
}

var demoUsers = []seedUser{
	{Username: "alice_wonder", FullName: "Alice Wonder", Course: "Computer Science", Year: 4},
	{Username: "bob_builder", FullName: "Bob Builder", Course: "Software Engineering", Year: 3},
	{Username: "carol_coder", FullName: "Carol Coder", Course: "Computer Science", Year: 2},
	{Username: "david_data", FullName: "David Data", Course: "Data Science", Year: 3},
	{Username: "emma_engineer", FullName: "Emma Engineer", Course: "Electrical Engineering", Year: 1},
}

type seedGroup struct {
	Name        string
	Description string
	Creator     string
	Members     map[string]entity.Rank
}

var demoGroups = []seedGroup{
	{
		Name:        "Data Structures Study Circle",
		Description: "Weekly problem sets on trees, graphs and heaps.",
		Creator:     "alice_wonder",
		Members: map[string]entity.Rank{
			"bob_builder": entity.RankAdmin,
			"carol_coder": entity.RankMember,
			"david_data":  entity.RankEditor,
		},
	},
	{
		Name:        "Databases Exam Prep",
		Description: "Normal forms, transactions and past papers.",
		Creator:     "david_data",
		Members: map[string]entity.Rank{
			"emma_engineer": entity.RankMember,
		},
	},
}

var demoFriendships = [][2]string{
	{"alice_wonder", "bob_builder"},
	{"alice_wonder", "carol_coder"},
	{"david_data", "emma_engineer"},
}

// SeedDemoData fills an empty database with users, groups, friendships, a
// private chat and a few messages. Rows that already exist are left alone.
func SeedDemoData(db *gorm.DB, log zerolog.Logger) error {
	return db.Transaction(func(tx *gorm.DB) error {
		users := make(map[string]*entity.User, len(demoUsers))
		for _, su := range demoUsers {
			u, err := seedUserRow(tx, su)
			if err != nil {
				return err
			}
			users[su.Username] = u
		}
		log.Info().Int("count", len(users)).Msg("users seeded")

		for _, sg := range demoGroups {
			g, err := seedGroupRow(tx, sg, users)
			if err != nil {
				return err
			}
			if err := seedGroupMessages(tx, g, sg, users); err != nil {
				return err
			}
		}
		log.Info().Int("count", len(demoGroups)).Msg("groups seeded")

		for _, pair := range demoFriendships {
			f := &entity.Friendship{
				FromUserID: users[pair[0]].ID,
				ToUserID:   users[pair[1]].ID,
				Status:     entity.FriendshipAccepted,
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(f).Error; err != nil {
				return fmt.Errorf("seed friendship %s/%s: %w", pair[0], pair[1], err)
			}
		}
		log.Info().Int("count", len(demoFriendships)).Msg("friendships seeded")

		return seedChat(tx, users["alice_wonder"], users["bob_builder"])
	})
}

func seedUserRow(tx *gorm.DB, su seedUser) (*entity.User, error) {
	var u entity.User
	err := tx.Where("username = ?", su.Username).First(&u).Error
	if err == nil {
		return &u, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	u = entity.User{Username: su.Username, FullName: su.FullName, Course: su.Course, Year: su.Year}
	if err := tx.Create(&u).Error; err != nil {
		return nil, fmt.Errorf("seed user %s: %w", su.Username, err)
	}
	return &u, nil
}

func seedGroupRow(tx *gorm.DB, sg seedGroup, users map[string]*entity.User) (*entity.StudyGroup, error) {
	var g entity.StudyGroup
	err := tx.Where("name = ?", sg.Name).First(&g).Error
	if err == nil {
		return &g, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	g = entity.StudyGroup{Name: sg.Name, Description: sg.Description, CreatorID: users[sg.Creator].ID}
	if err := tx.Create(&g).Error; err != nil {
		return nil, fmt.Errorf("seed group %s: %w", sg.Name, err)
	}

	memberships := []entity.GroupMembership{{GroupID: g.ID, UserID: g.CreatorID, Rank: entity.RankCreator}}
	for username, rank := range sg.Members {
		memberships = append(memberships, entity.GroupMembership{GroupID: g.ID, UserID: users[username].ID, Rank: rank})
	}
	if err := tx.Create(&memberships).Error; err != nil {
		return nil, fmt.Errorf("seed members of %s: %w", sg.Name, err)
	}
	return &g, nil
}

func seedGroupMessages(tx *gorm.DB, g *entity.StudyGroup, sg seedGroup, users map[string]*entity.User) error {
	var count int64
	if err := tx.Model(&entity.GroupMessage{}).Where("group_id = ?", g.ID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	msg := &entity.GroupMessage{
		GroupID:  g.ID,
		SenderID: users[sg.Creator].ID,
		Content:  "Welcome to " + sg.Name + "! Post your questions here.",
	}
	if err := tx.Create(msg).Error; err != nil {
		return fmt.Errorf("seed message in %s: %w", sg.Name, err)
	}
	return tx.Model(&entity.StudyGroup{}).Where("id = ?", g.ID).Update("last_activity_at", msg.CreatedAt).Error
}

func seedChat(tx *gorm.DB, a, b *entity.User) error {
	low, high := entity.OrderedPair(a.ID, b.ID)
	chat := &entity.PrivateChat{ParticipantLow: low, ParticipantHigh: high}
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(chat)
	if res.Error != nil {
		return fmt.Errorf("seed chat: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil
	}

	messages := []entity.PrivateMessage{
		{ChatID: chat.ID, SenderID: a.ID, Content: "Are you coming to the study session tomorrow?"},
		{ChatID: chat.ID, SenderID: b.ID, Content: "Yes, I'll bring my notes on graph traversal."},
	}
	return tx.Create(&messages).Error
}
