package service

import (
	"context"
	"errors"
	"fmt"

	"forum/internal/metrics"
	"forum/internal/models"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RoomService 封装房间相关的写操作。
type RoomService struct {
	db *gorm.DB
}

func NewRoomService(db *gorm.DB) *RoomService {
	return &RoomService{db: db}
}

// GetOrCreateTopic 按名称精确查找话题，不存在时创建。
// 表上没有唯一约束，并发的同名请求可能各自创建一行。
func (s *RoomService) GetOrCreateTopic(ctx context.Context, name string) (*models.Topic, bool, error) {
	db := s.db.WithContext(ctx)
	var topic models.Topic
	err := db.Where("name = ?", name).First(&topic).Error
	if err == nil {
		return &topic, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("find topic %q: %w", name, err)
	}
	topic = models.Topic{Name: name}
	if err := db.Create(&topic).Error; err != nil {
		return nil, false, fmt.Errorf("create topic %q: %w", name, err)
	}
	metrics.TopicsCreatedTotal.Inc()
	return &topic, true, nil
}

// Create 创建新房间，host 为创建者。话题与房间分两条语句写入，房间写入失败时可能留下空话题。
func (s *RoomService) Create(ctx context.Context, host *models.User, in RoomInput) (*models.Room, error) {
	in.normalize()
	if err := validateInput(&in); err != nil {
		return nil, err
	}
	topic, _, err := s.GetOrCreateTopic(ctx, in.Topic)
	if err != nil {
		return nil, err
	}
	hostID := host.ID
	room := models.Room{
		HostID:      &hostID,
		TopicID:     &topic.ID,
		Name:        in.Name,
		Description: in.Description,
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&room).Error; err != nil {
		return nil, fmt.Errorf("create room %q: %w", in.Name, err)
	}
	room.Host = host
	room.Topic = topic
	metrics.RoomsCreatedTotal.Inc()
	log.Debug().Uint("room_id", room.ID).Uint("host_id", hostID).Str("topic", topic.Name).Msg("room created")
	return &room, nil
}

func (s *RoomService) load(ctx context.Context, id uint) (*models.Room, error) {
	var room models.Room
	if err := s.db.WithContext(ctx).First(&room, id).Error; err != nil {
		return nil, notFound(err, "room", id)
	}
	return &room, nil
}

// Authorize 检查 requester 是否为房间 host，供编辑页在展示表单前调用。
func (s *RoomService) Authorize(ctx context.Context, id uint, requester *models.User) (*models.Room, error) {
	room, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize("room", requester.ID, room.HostID); err != nil {
		return nil, err
	}
	return room, nil
}

// Update 仅允许 host 修改房间，话题同样走 get-or-create 并绑定解析出的话题实体。
func (s *RoomService) Update(ctx context.Context, id uint, requester *models.User, in RoomInput) (*models.Room, error) {
	room, err := s.Authorize(ctx, id, requester)
	if err != nil {
		return nil, err
	}
	in.normalize()
	if err := validateInput(&in); err != nil {
		return nil, err
	}
	topic, _, err := s.GetOrCreateTopic(ctx, in.Topic)
	if err != nil {
		return nil, err
	}
	room.Name = in.Name
	room.Description = in.Description
	room.TopicID = &topic.ID
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Save(room).Error; err != nil {
		return nil, fmt.Errorf("update room %d: %w", id, err)
	}
	room.Topic = topic
	room.Host = requester
	return room, nil
}

// Delete 仅允许 host 删除房间；消息与参与者关系随外键级联删除。
func (s *RoomService) Delete(ctx context.Context, id uint, requester *models.User) error {
	room, err := s.Authorize(ctx, id, requester)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Select("Participants").Delete(room).Error; err != nil {
		return fmt.Errorf("delete room %d: %w", id, err)
	}
	log.Debug().Uint("room_id", id).Uint("host_id", requester.ID).Msg("room deleted")
	return nil
}
