package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"discussion-service/internal/apperrors"
	"discussion-service/internal/auth"
	"discussion-service/internal/middleware"
	"discussion-service/internal/mocks"
	"discussion-service/internal/models"
	"discussion-service/internal/pipeline"
)

type senderMock struct {
	mock.Mock
}

func (m *senderMock) Send(ctx context.Context, req pipeline.SendRequest, intent pipeline.DeliveryIntent) (models.Message, error) {
	args := m.Called(ctx, req, intent)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func identity(userID int, username, role string) auth.Identity {
	return auth.Identity{UserID: userID, Username: username, Role: role}
}

func authAs(userID int, username, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserID, userID)
		c.Set(middleware.ContextUsername, username)
		c.Set(middleware.ContextRole, role)
		c.Next()
	}
}

func setupMessageRouter(handler *MessageHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(authAs(1, "alice", "user"))
	r.POST("/chat/messages", handler.PostMessage)
	r.GET("/chat/messages", handler.GetMessages)
	return r
}

func TestPostMessageUsesFallbackIntent(t *testing.T) {
	sender := new(senderMock)
	handler := NewMessageHandler(sender, new(mocks.TopicRepositoryMock), new(mocks.ChatRepositoryMock), new(mocks.MessageRepositoryMock))
	router := setupMessageRouter(handler)

	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	sender.On("Send", mock.Anything, pipeline.SendRequest{
		Sender:    identity(1, "alice", "user"),
		ChatID:    9,
		Content:   "hi",
		ClientKey: "key-1",
	}, pipeline.FallbackOriginated).
		Return(models.Message{ID: 100, ChatID: 9, SenderID: 1, Content: "hi", CreatedAt: now}, nil).Once()

	body := bytes.NewBufferString(`{"chat_id":9,"content":"hi","client_key":"key-1"}`)
	req := httptest.NewRequest(http.MethodPost, "/chat/messages", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var msg models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&msg))
	assert.Equal(t, 100, msg.ID)
	sender.AssertExpectations(t)
}

func TestPostMessageMapsPipelineErrors(t *testing.T) {
	sender := new(senderMock)
	handler := NewMessageHandler(sender, new(mocks.TopicRepositoryMock), new(mocks.ChatRepositoryMock), new(mocks.MessageRepositoryMock))
	router := setupMessageRouter(handler)

	sender.On("Send", mock.Anything, mock.Anything, pipeline.FallbackOriginated).
		Return(models.Message{}, apperrors.ErrNotChatMember).Once()

	body := bytes.NewBufferString(`{"chat_id":9,"content":"hi"}`)
	req := httptest.NewRequest(http.MethodPost, "/chat/messages", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, string(apperrors.CodePermissionDenied), resp["code"])
}

func TestGetMessagesTopicReadableBeforeJoining(t *testing.T) {
	topics := new(mocks.TopicRepositoryMock)
	chats := new(mocks.ChatRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(new(senderMock), topics, chats, messages)
	router := setupMessageRouter(handler)

	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	topicID := 7
	topics.On("GetTopic", mock.Anything, 7).Return(models.Topic{ID: 7}, nil).Once()
	chats.On("GetChatByTopic", mock.Anything, 7).Return(models.Chat{ID: 70, TopicID: &topicID}, nil).Once()
	messages.On("ListPage", mock.Anything, 70, 1, 50).
		Return([]models.Message{{ID: 1, ChatID: 70, CreatedAt: now}}, models.Pagination{Page: 1, Limit: 50, Total: 1}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/chat/messages?topic_id=7", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	chats.AssertNotCalled(t, "IsActiveMember", mock.Anything, mock.Anything, mock.Anything)
	topics.AssertExpectations(t)
	messages.AssertExpectations(t)
}

func TestGetMessagesChatRequiresMembership(t *testing.T) {
	chats := new(mocks.ChatRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	handler := NewMessageHandler(new(senderMock), new(mocks.TopicRepositoryMock), chats, messages)
	router := setupMessageRouter(handler)

	chats.On("GetChat", mock.Anything, 9).Return(models.Chat{ID: 9}, nil).Once()
	chats.On("IsActiveMember", mock.Anything, 9, 1).Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/chat/messages?chat_id=9", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	messages.AssertNotCalled(t, "ListPage", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGetMessagesRejectsAmbiguousTarget(t *testing.T) {
	handler := NewMessageHandler(new(senderMock), new(mocks.TopicRepositoryMock), new(mocks.ChatRepositoryMock), new(mocks.MessageRepositoryMock))
	router := setupMessageRouter(handler)

	for _, query := range []string{"", "?topic_id=7&chat_id=9"} {
		req := httptest.NewRequest(http.MethodGet, "/chat/messages"+query, nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	}
}
