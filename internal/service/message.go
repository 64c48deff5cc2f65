package service

import (
	"context"
	"fmt"

	"forum/internal/metrics"
	"forum/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MessageService 封装消息相关的写操作。
type MessageService struct {
	db *gorm.DB
}

func NewMessageService(db *gorm.DB) *MessageService {
	return &MessageService{db: db}
}

// Post 在房间内发布消息，并把作者加入房间参与者（重复加入不产生新行）。
func (s *MessageService) Post(ctx context.Context, roomID uint, author *models.User, in MessageInput) (*models.Message, error) {
	in.normalize()
	if err := validateInput(&in); err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx)
	var room models.Room
	if err := db.Select("id").First(&room, roomID).Error; err != nil {
		return nil, notFound(err, "room", roomID)
	}
	msg := models.Message{UserID: author.ID, RoomID: room.ID, Body: in.Body}
	if err := db.Omit(clause.Associations).Create(&msg).Error; err != nil {
		return nil, fmt.Errorf("create message in room %d: %w", roomID, err)
	}
	err := db.Table("room_participants").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "room_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"room_id"}),
		}).
		Create(map[string]interface{}{"room_id": room.ID, "user_id": author.ID}).Error
	if err != nil {
		return nil, fmt.Errorf("add participant %d to room %d: %w", author.ID, roomID, err)
	}
	msg.User = author
	metrics.MessagesPostedTotal.Inc()
	return &msg, nil
}

// Authorize 检查 requester 是否为消息作者。
func (s *MessageService) Authorize(ctx context.Context, id uint, requester *models.User) (*models.Message, error) {
	var msg models.Message
	if err := s.db.WithContext(ctx).Preload("Room").First(&msg, id).Error; err != nil {
		return nil, notFound(err, "message", id)
	}
	authorID := msg.UserID
	if err := authorize("message", requester.ID, &authorID); err != nil {
		return nil, err
	}
	return &msg, nil
}

// Delete 仅允许作者删除自己的消息。
func (s *MessageService) Delete(ctx context.Context, id uint, requester *models.User) error {
	msg, err := s.Authorize(ctx, id, requester)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(&models.Message{}, msg.ID).Error; err != nil {
		return fmt.Errorf("delete message %d: %w", id, err)
	}
	return nil
}
