package database

import (
	"fmt"

	"anoa.com/studyhub/internal/entity"
	"gorm.io/gorm"
)

// Models lists every persisted entity in dependency order.
func Models() []interface{} {
	return []interface{}{
		&entity.User{},
		&entity.StudyGroup{},
		&entity.GroupMembership{},
		&entity.JoinRequest{},
		&entity.GroupInvite{},
		&entity.GroupMessage{},
		&entity.PrivateChat{},
		&entity.PrivateMessage{},
		&entity.Reaction{},
		&entity.Friendship{},
		&entity.Notification{},
	}
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
