package models

import "time"

// DefaultAvatar 是未上传头像时使用的占位图。
const DefaultAvatar = "avatar.svg"

// User 以 email 作为登录标识，username 仅用于展示与去重。
// email 与账号状态字段不出现在任何 JSON 输出中，公开页面只暴露展示字段。
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;size:150;not null" json:"username"`
	Email        string    `gorm:"uniqueIndex;size:254;not null" json:"-"`
	Name         string    `gorm:"size:200" json:"name"`
	Bio          string    `gorm:"type:text" json:"bio"`
	Avatar       string    `gorm:"size:255;default:avatar.svg" json:"avatar"`
	PasswordHash string    `gorm:"not null" json:"-"`
	IsActive     bool      `gorm:"not null;default:true" json:"-"`
	IsSuperuser  bool      `gorm:"not null;default:false" json:"-"`
	CreatedAt    time.Time `json:"date_joined"`
	UpdatedAt    time.Time `json:"updated"`
}

// Topic 不在表结构上做唯一约束，去重只依赖 get-or-create。
type Topic struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:200;not null;index" json:"name"`
}

// Room 的 host / topic 被删除时置空，房间本身保留。
type Room struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	HostID       *uint     `gorm:"index" json:"host_id"`
	Host         *User     `gorm:"foreignKey:HostID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"host,omitempty"`
	TopicID      *uint     `gorm:"index" json:"topic_id"`
	Topic        *Topic    `gorm:"foreignKey:TopicID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"topic,omitempty"`
	Name         string    `gorm:"size:200;not null" json:"name"`
	Description  string    `gorm:"type:text" json:"description"`
	Participants []User    `gorm:"many2many:room_participants;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"participants,omitempty"`
	CreatedAt    time.Time `gorm:"index" json:"created"`
	UpdatedAt    time.Time `gorm:"index" json:"updated"`
}

// Message 随作者或房间的删除级联删除。
type Message struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	User      *User     `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"user,omitempty"`
	RoomID    uint      `gorm:"index:idx_msg_room_id;not null" json:"room_id"`
	Room      *Room     `gorm:"foreignKey:RoomID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"room,omitempty"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	CreatedAt time.Time `gorm:"index" json:"created"`
	UpdatedAt time.Time `gorm:"index" json:"updated"`
}

// Preview 返回消息正文的前 50 个字符，用于删除确认等场景。
func (m Message) Preview() string {
	r := []rune(m.Body)
	if len(r) > 50 {
		return string(r[:50])
	}
	return m.Body
}

type RefreshToken struct {
	ID        uint       `gorm:"primaryKey"`
	UserID    uint       `gorm:"index;not null"`
	User      *User      `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Token     string     `gorm:"uniqueIndex;size:128;not null"`
	ExpiresAt time.Time  `gorm:"index;not null"`
	RevokedAt *time.Time
	CreatedAt time.Time
}
