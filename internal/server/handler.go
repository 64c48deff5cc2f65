package server

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"forum/internal/auth"
	"forum/internal/config"
	"forum/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// registrationFailedMessage 是注册失败时附带的通用提示。
const registrationFailedMessage = "Username or password not valid"

// avatarTypes 是允许上传的头像类型（按内容嗅探，不看文件名），值为保存时使用的扩展名。
// 不接受 SVG：同源提供的 SVG 可以执行脚本。
var avatarTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Handler 聚合网页端的 handler，页面请求返回渲染所需的上下文 JSON，表单提交成功后重定向。
type Handler struct {
	cfg   config.Config
	users *service.UserService
	rooms *service.RoomService
	msgs  *service.MessageService
	query *service.QueryService
}

func NewHandler(cfg config.Config, users *service.UserService, rooms *service.RoomService, msgs *service.MessageService, query *service.QueryService) *Handler {
	return &Handler{cfg: cfg, users: users, rooms: rooms, msgs: msgs, query: query}
}

// LoginPage 展示登录页；已登录用户直接回到首页。
func (h *Handler) LoginPage(c *gin.Context) {
	if auth.CurrentUser(c) != nil {
		c.Redirect(http.StatusFound, "/")
		return
	}
	c.JSON(http.StatusOK, gin.H{"page": "login", "next": c.Query("next")})
}

// Login 处理邮箱 + 密码登录。
func (h *Handler) Login(c *gin.Context) {
	if auth.CurrentUser(c) != nil {
		c.Redirect(http.StatusFound, "/")
		return
	}
	var req struct {
		Email    string `form:"email" json:"email"`
		Password string `form:"password" json:"password"`
		Next     string `form:"next" json:"next"`
	}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	result, err := h.users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	h.setSession(c, result.AccessToken, result.RefreshToken)
	next := req.Next
	if next == "" {
		next = c.Query("next")
	}
	c.Redirect(http.StatusFound, safeNext(next))
}

// Logout 吊销 refresh token 并清除会话 cookie。
func (h *Handler) Logout(c *gin.Context) {
	if err := h.users.Logout(c.Request.Context(), currentRefreshToken(c)); err != nil {
		respondError(c, err, nil)
		return
	}
	h.clearSession(c)
	c.Redirect(http.StatusFound, "/")
}

func (h *Handler) RegisterPage(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"page": "register", "form": service.RegisterInput{}})
}

// Register 注册成功后直接登录。
func (h *Handler) Register(c *gin.Context) {
	var in service.RegisterInput
	if err := c.ShouldBind(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	user, err := h.users.Register(c.Request.Context(), in)
	if err != nil {
		var ve *service.ValidationError
		if errors.As(err, &ve) {
			c.JSON(http.StatusBadRequest, gin.H{"page": "register", "form": in, "errors": ve.Fields, "messages": []string{registrationFailedMessage}})
			return
		}
		respondError(c, err, in)
		return
	}
	result, err := h.users.LoginUser(c.Request.Context(), user)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	h.setSession(c, result.AccessToken, result.RefreshToken)
	c.Redirect(http.StatusFound, "/")
}

// Home 首页：按 q 搜索房间，并附带话题侧栏与对应话题下的最新消息。
func (h *Handler) Home(c *gin.Context) {
	ctx := c.Request.Context()
	q := c.Query("q")
	rooms, err := h.query.SearchRooms(ctx, q)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	topics, err := h.query.TopTopics(ctx, service.TopTopicsLimit)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	count, err := h.query.CountRooms(ctx, q)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	roomMessages, err := h.query.SearchRoomMessages(ctx, q)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"q":             q,
		"rooms":         rooms,
		"topics":        topics,
		"room_count":    count,
		"room_messages": roomMessages,
	})
}

// Room 展示房间详情、消息列表与参与者。
func (h *Handler) Room(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		respondError(c, service.ErrNotFound, nil)
		return
	}
	ctx := c.Request.Context()
	room, err := h.query.GetRoom(ctx, id)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	msgs, err := h.query.RoomMessages(ctx, id)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": room, "room_messages": msgs, "participants": room.Participants})
}

// PostMessage 在房间内发言，成功后回到房间页。
func (h *Handler) PostMessage(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		respondError(c, service.ErrNotFound, nil)
		return
	}
	var in service.MessageInput
	if err := c.ShouldBind(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if _, err := h.msgs.Post(c.Request.Context(), id, auth.CurrentUser(c), in); err != nil {
		respondError(c, err, in)
		return
	}
	c.Redirect(http.StatusFound, "/room/"+strconv.FormatUint(uint64(id), 10))
}

// Profile 展示用户主页。
func (h *Handler) Profile(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		respondError(c, service.ErrNotFound, nil)
		return
	}
	p, err := h.query.UserProfile(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": p.User, "rooms": p.Rooms, "room_messages": p.Messages, "topics": p.Topics})
}

func (h *Handler) CreateRoomPage(c *gin.Context) {
	topics, err := h.query.ListTopics(c.Request.Context())
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"form": service.RoomInput{}, "topics": topics})
}

func (h *Handler) CreateRoom(c *gin.Context) {
	var in service.RoomInput
	if err := c.ShouldBind(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if _, err := h.rooms.Create(c.Request.Context(), auth.CurrentUser(c), in); err != nil {
		respondError(c, err, in)
		return
	}
	c.Redirect(http.StatusFound, "/")
}

// UpdateRoomPage 只有 host 能看到编辑表单。
func (h *Handler) UpdateRoomPage(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		respondError(c, service.ErrNotFound, nil)
		return
	}
	ctx := c.Request.Context()
	room, err := h.rooms.Authorize(ctx, id, auth.CurrentUser(c))
	if err != nil {
		respondError(c, err, nil)
		return
	}
	room, err = h.query.GetRoom(ctx, room.ID)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	topics, err := h.query.ListTopics(ctx)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	form := service.RoomInput{Name: room.Name, Description: room.Description}
	if room.Topic != nil {
		form.Topic = room.Topic.Name
	}
	c.JSON(http.StatusOK, gin.H{"form": form, "topics": topics, "room": room})
}

func (h *Handler) UpdateRoom(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		respondError(c, service.ErrNotFound, nil)
		return
	}
	var in service.RoomInput
	if err := c.ShouldBind(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if _, err := h.rooms.Update(c.Request.Context(), id, auth.CurrentUser(c), in); err != nil {
		respondError(c, err, in)
		return
	}
	c.Redirect(http.StatusFound, "/")
}

// DeleteRoomPage 展示删除确认页。
func (h *Handler) DeleteRoomPage(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		respondError(c, service.ErrNotFound, nil)
		return
	}
	room, err := h.rooms.Authorize(c.Request.Context(), id, auth.CurrentUser(c))
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"obj": room})
}

func (h *Handler) DeleteRoom(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		respondError(c, service.ErrNotFound, nil)
		return
	}
	if err := h.rooms.Delete(c.Request.Context(), id, auth.CurrentUser(c)); err != nil {
		respondError(c, err, nil)
		return
	}
	c.Redirect(http.StatusFound, "/")
}

func (h *Handler) DeleteMessagePage(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		respondError(c, service.ErrNotFound, nil)
		return
	}
	msg, err := h.msgs.Authorize(c.Request.Context(), id, auth.CurrentUser(c))
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"obj": msg, "preview": msg.Preview()})
}

func (h *Handler) DeleteMessage(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		respondError(c, service.ErrNotFound, nil)
		return
	}
	if err := h.msgs.Delete(c.Request.Context(), id, auth.CurrentUser(c)); err != nil {
		respondError(c, err, nil)
		return
	}
	c.Redirect(http.StatusFound, "/")
}

func (h *Handler) UpdateUserPage(c *gin.Context) {
	u := auth.CurrentUser(c)
	form := service.ProfileInput{Name: u.Name, Username: u.Username, Email: u.Email, Bio: u.Bio, Avatar: u.Avatar}
	c.JSON(http.StatusOK, gin.H{"form": form, "user": u})
}

// UpdateUser 修改自己的资料，可选地通过 multipart 上传头像。
func (h *Handler) UpdateUser(c *gin.Context) {
	u := auth.CurrentUser(c)
	var in service.ProfileInput
	if err := c.ShouldBind(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	var saved string
	if fh, err := c.FormFile("avatar"); err == nil {
		ext, err := sniffAvatar(fh)
		if err != nil {
			respondError(c, err, in)
			return
		}
		dir := filepath.Join(h.cfg.MediaDir, "avatars")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			respondError(c, err, nil)
			return
		}
		name := uuid.NewString() + ext
		saved = filepath.Join(dir, name)
		if err := c.SaveUploadedFile(fh, saved); err != nil {
			respondError(c, err, nil)
			return
		}
		in.Avatar = "avatars/" + name
	}
	updated, err := h.users.UpdateProfile(c.Request.Context(), u, in)
	if err != nil {
		if saved != "" {
			if rmErr := os.Remove(saved); rmErr != nil {
				log.Warn().Err(rmErr).Str("file", saved).Msg("remove rejected avatar")
			}
		}
		respondError(c, err, in)
		return
	}
	c.Redirect(http.StatusFound, "/profile/"+strconv.FormatUint(uint64(updated.ID), 10))
}

// sniffAvatar 按文件内容判断图片类型，返回保存用的扩展名。
func sniffAvatar(fh *multipart.FileHeader) (string, error) {
	invalid := &service.ValidationError{Fields: map[string]string{"avatar": "Upload a valid image. The file you uploaded was either not an image or a corrupted image."}}
	f, err := fh.Open()
	if err != nil {
		return "", invalid
	}
	defer f.Close()
	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", invalid
	}
	ext, ok := avatarTypes[http.DetectContentType(head[:n])]
	if !ok {
		return "", invalid
	}
	return ext, nil
}

// Topics 话题列表，支持 q 过滤。
func (h *Handler) Topics(c *gin.Context) {
	topics, err := h.query.SearchTopics(c.Request.Context(), c.Query("q"))
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"topics": topics})
}

// Activity 全站最新动态。
func (h *Handler) Activity(c *gin.Context) {
	msgs, err := h.query.Activity(c.Request.Context())
	if err != nil {
		respondError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"room_messages": msgs})
}
