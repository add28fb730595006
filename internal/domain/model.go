package domain

import (
	"time"
)

// UserModel is the GORM model for the users table.
type UserModel struct {
	ID            int64     `gorm:"primaryKey;autoIncrement"`
	Username      string    `gorm:"type:varchar(150);uniqueIndex;not null"`
	DateJoined    time.Time `gorm:"not null"`
	FollowerCount int64     `gorm:"not null;default:0"`
	LeaderCount   int64     `gorm:"not null;default:0"`
}

func (UserModel) TableName() string { return "users" }

// PostModel is the GORM model for the posts table.
type PostModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	UserID    int64     `gorm:"column:user_id;not null;index"`
	User      UserModel `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Content   string    `gorm:"type:varchar(140);not null"`
	Timestamp time.Time `gorm:"not null;index"`
	LikeCount int64     `gorm:"not null;default:0"`
}

func (PostModel) TableName() string { return "posts" }

// FollowModel is the GORM model for the follows table.
// The composite primary key makes each (follower, leader) pair unique.
type FollowModel struct {
	FollowerID int64     `gorm:"column:follower_id;primaryKey;autoIncrement:false"`
	LeaderID   int64     `gorm:"column:leader_id;primaryKey;autoIncrement:false;index"`
	Follower   UserModel `gorm:"foreignKey:FollowerID;constraint:OnDelete:CASCADE"`
	Leader     UserModel `gorm:"foreignKey:LeaderID;constraint:OnDelete:CASCADE"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

func (FollowModel) TableName() string { return "follows" }

// LikeModel is the GORM model for the likes table.
type LikeModel struct {
	UserID    int64     `gorm:"column:user_id;primaryKey;autoIncrement:false"`
	PostID    int64     `gorm:"column:post_id;primaryKey;autoIncrement:false;index"`
	User      UserModel `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Post      PostModel `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (LikeModel) TableName() string { return "likes" }

// AllModels lists every table for auto-migration.
func AllModels() []interface{} {
	return []interface{}{&UserModel{}, &PostModel{}, &FollowModel{}, &LikeModel{}}
}
