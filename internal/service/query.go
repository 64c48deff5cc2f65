package service

import (
	"context"
	"fmt"
	"strings"

	"forum/internal/models"

	"gorm.io/gorm"
)

// TopTopicsLimit 是首页侧栏展示的话题数量。
const TopTopicsLimit = 5

// QueryService 负责房间、消息与话题的只读查询。
type QueryService struct {
	db *gorm.DB
}

func NewQueryService(db *gorm.DB) *QueryService {
	return &QueryService{db: db}
}

// NewestFirst 是 Room 与 Message 的默认排序：最近更新优先，其次最近创建。
func NewestFirst(table string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Order(table + ".updated_at DESC").Order(table + ".created_at DESC").Order(table + ".id DESC")
	}
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// containsPattern 构造大小写不敏感的子串匹配模式，q 中的通配符按字面匹配。
func containsPattern(q string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(q)) + "%"
}

func ilike(column string) string {
	return "LOWER(" + column + ") LIKE ? ESCAPE '!'"
}

func (s *QueryService) roomsMatching(ctx context.Context, q string) *gorm.DB {
	p := containsPattern(q)
	return s.db.WithContext(ctx).Model(&models.Room{}).
		Joins("LEFT JOIN topics ON topics.id = rooms.topic_id").
		Where(ilike("topics.name")+" OR "+ilike("rooms.name")+" OR "+ilike("rooms.description"), p, p, p)
}

// SearchRooms 返回话题名、房间名或描述中包含 q 的房间；q 为空时返回全部房间。
func (s *QueryService) SearchRooms(ctx context.Context, q string) ([]models.Room, error) {
	var rooms []models.Room
	err := s.roomsMatching(ctx, q).
		Scopes(NewestFirst("rooms")).
		Preload("Host").Preload("Topic").Preload("Participants").
		Find(&rooms).Error
	if err != nil {
		return nil, fmt.Errorf("search rooms: %w", err)
	}
	return rooms, nil
}

// CountRooms 返回 SearchRooms(q) 的结果数量。
func (s *QueryService) CountRooms(ctx context.Context, q string) (int64, error) {
	var n int64
	if err := s.roomsMatching(ctx, q).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count rooms: %w", err)
	}
	return n, nil
}

// SearchRoomMessages 按消息所在房间的话题名过滤，不匹配消息正文。
// 房间没有话题时消息永远不会命中，即使 q 为空。
func (s *QueryService) SearchRoomMessages(ctx context.Context, q string) ([]models.Message, error) {
	var msgs []models.Message
	err := s.db.WithContext(ctx).Model(&models.Message{}).
		Joins("JOIN rooms ON rooms.id = messages.room_id").
		Joins("JOIN topics ON topics.id = rooms.topic_id").
		Where(ilike("topics.name"), containsPattern(q)).
		Scopes(NewestFirst("messages")).
		Preload("User").Preload("Room").Preload("Room.Topic").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("search room messages: %w", err)
	}
	return msgs, nil
}

// TopTopics 按存储顺序返回前 limit 个话题，不做排名。
func (s *QueryService) TopTopics(ctx context.Context, limit int) ([]models.Topic, error) {
	var topics []models.Topic
	if err := s.db.WithContext(ctx).Order("id").Limit(limit).Find(&topics).Error; err != nil {
		return nil, fmt.Errorf("top topics: %w", err)
	}
	return topics, nil
}

// SearchTopics 返回名称包含 q 的话题（大小写不敏感）。
func (s *QueryService) SearchTopics(ctx context.Context, q string) ([]models.Topic, error) {
	var topics []models.Topic
	err := s.db.WithContext(ctx).
		Where(ilike("name"), containsPattern(q)).
		Order("id").
		Find(&topics).Error
	if err != nil {
		return nil, fmt.Errorf("search topics: %w", err)
	}
	return topics, nil
}

func (s *QueryService) ListTopics(ctx context.Context) ([]models.Topic, error) {
	return s.SearchTopics(ctx, "")
}

// ListRooms 返回全部房间，供只读 API 使用。
func (s *QueryService) ListRooms(ctx context.Context) ([]models.Room, error) {
	var rooms []models.Room
	err := s.db.WithContext(ctx).
		Scopes(NewestFirst("rooms")).
		Preload("Participants").
		Find(&rooms).Error
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// GetRoom 加载单个房间及其 host、话题与参与者。
func (s *QueryService) GetRoom(ctx context.Context, id uint) (*models.Room, error) {
	var room models.Room
	err := s.db.WithContext(ctx).
		Preload("Host").Preload("Topic").Preload("Participants").
		First(&room, id).Error
	if err != nil {
		return nil, notFound(err, "room", id)
	}
	return &room, nil
}

// RoomMessages 返回某个房间内的全部消息。
func (s *QueryService) RoomMessages(ctx context.Context, roomID uint) ([]models.Message, error) {
	var msgs []models.Message
	err := s.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Scopes(NewestFirst("messages")).
		Preload("User").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("list messages of room %d: %w", roomID, err)
	}
	return msgs, nil
}

func (s *QueryService) GetMessage(ctx context.Context, id uint) (*models.Message, error) {
	var msg models.Message
	if err := s.db.WithContext(ctx).Preload("User").Preload("Room").First(&msg, id).Error; err != nil {
		return nil, notFound(err, "message", id)
	}
	return &msg, nil
}

// Activity 返回全站最近的消息动态。
func (s *QueryService) Activity(ctx context.Context) ([]models.Message, error) {
	var msgs []models.Message
	err := s.db.WithContext(ctx).
		Scopes(NewestFirst("messages")).
		Preload("User").Preload("Room").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("activity: %w", err)
	}
	return msgs, nil
}

// Profile 是个人主页需要的数据。
type Profile struct {
	User     *models.User
	Rooms    []models.Room
	Messages []models.Message
	Topics   []models.Topic
}

// UserProfile 返回用户、其主持的房间、其发布的消息以及全部话题。
func (s *QueryService) UserProfile(ctx context.Context, userID uint) (*Profile, error) {
	db := s.db.WithContext(ctx)
	var user models.User
	if err := db.First(&user, userID).Error; err != nil {
		return nil, notFound(err, "user", userID)
	}
	p := &Profile{User: &user}
	err := db.Where("host_id = ?", userID).
		Scopes(NewestFirst("rooms")).
		Preload("Host").Preload("Topic").Preload("Participants").
		Find(&p.Rooms).Error
	if err != nil {
		return nil, fmt.Errorf("rooms of user %d: %w", userID, err)
	}
	err = db.Where("user_id = ?", userID).
		Scopes(NewestFirst("messages")).
		Preload("User").Preload("Room").
		Find(&p.Messages).Error
	if err != nil {
		return nil, fmt.Errorf("messages of user %d: %w", userID, err)
	}
	if p.Topics, err = s.ListTopics(ctx); err != nil {
		return nil, err
	}
	return p, nil
}
