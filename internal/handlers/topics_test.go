package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"discussion-service/internal/apperrors"
	"discussion-service/internal/mocks"
	"discussion-service/internal/models"
)

func setupTopicRouter(handler *TopicHandler, userID int, role string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(authAs(userID, "alice", role))
	r.POST("/chat/topics", handler.CreateTopic)
	r.GET("/chat/topics", handler.ListTopics)
	r.DELETE("/chat/topics/:topic_id", handler.DeleteTopic)
	return r
}

func TestCreateTopicReturnsBackingChat(t *testing.T) {
	topics := new(mocks.TopicRepositoryMock)
	handler := NewTopicHandler(topics)
	router := setupTopicRouter(handler, 1, "user")

	topicID := 7
	topics.On("CreateTopic", mock.Anything, "go", "all things go", 1).
		Return(models.Topic{ID: 7, Title: "go", CreatorID: 1}, models.Chat{ID: 70, Kind: models.ChatKindGroup, TopicID: &topicID}, nil).Once()

	body := bytes.NewBufferString(`{"title":"go","description":"all things go"}`)
	req := httptest.NewRequest(http.MethodPost, "/chat/topics", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp struct {
		Topic models.Topic `json:"topic"`
		Chat  models.Chat  `json:"chat"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 7, resp.Topic.ID)
	assert.Equal(t, 70, resp.Chat.ID)
	topics.AssertExpectations(t)
}

func TestCreateTopicRequiresTitle(t *testing.T) {
	handler := NewTopicHandler(new(mocks.TopicRepositoryMock))
	router := setupTopicRouter(handler, 1, "user")

	req := httptest.NewRequest(http.MethodPost, "/chat/topics", bytes.NewBufferString(`{"description":"no title"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteTopicByCreator(t *testing.T) {
	topics := new(mocks.TopicRepositoryMock)
	handler := NewTopicHandler(topics)
	router := setupTopicRouter(handler, 1, "user")

	topics.On("GetTopic", mock.Anything, 7).Return(models.Topic{ID: 7, CreatorID: 1}, nil).Once()
	topics.On("DeactivateTopic", mock.Anything, 7).Return(nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/chat/topics/7", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	topics.AssertExpectations(t)
}

func TestDeleteTopicForbiddenForOthers(t *testing.T) {
	topics := new(mocks.TopicRepositoryMock)
	handler := NewTopicHandler(topics)
	router := setupTopicRouter(handler, 2, "user")

	topics.On("GetTopic", mock.Anything, 7).Return(models.Topic{ID: 7, CreatorID: 1}, nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/chat/topics/7", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	topics.AssertNotCalled(t, "DeactivateTopic", mock.Anything, mock.Anything)
}

func TestDeleteTopicAllowedForAdmin(t *testing.T) {
	topics := new(mocks.TopicRepositoryMock)
	handler := NewTopicHandler(topics)
	router := setupTopicRouter(handler, 2, "admin")

	topics.On("GetTopic", mock.Anything, 7).Return(models.Topic{ID: 7, CreatorID: 1}, nil).Once()
	topics.On("DeactivateTopic", mock.Anything, 7).Return(nil).Once()

	req := httptest.NewRequest(http.MethodDelete, "/chat/topics/7", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestDeleteTopicNotFound(t *testing.T) {
	topics := new(mocks.TopicRepositoryMock)
	handler := NewTopicHandler(topics)
	router := setupTopicRouter(handler, 1, "user")

	topics.On("GetTopic", mock.Anything, 7).Return(models.Topic{}, apperrors.ErrTopicNotFound).Once()

	req := httptest.NewRequest(http.MethodDelete, "/chat/topics/7", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
