package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"discussion-service/internal/auth"
	"discussion-service/internal/models"
	"discussion-service/internal/repositories"
)

var _ repositories.UserRepository = (*UserRepositoryMock)(nil)
var _ repositories.TopicRepository = (*TopicRepositoryMock)(nil)
var _ repositories.ChatRepository = (*ChatRepositoryMock)(nil)
var _ repositories.MessageRepository = (*MessageRepositoryMock)(nil)
var _ repositories.BlockRepository = (*BlockRepositoryMock)(nil)
var _ auth.Verifier = (*VerifierMock)(nil)

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) EnsureUser(ctx context.Context, user models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *UserRepositoryMock) GetUser(ctx context.Context, userID int) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

type TopicRepositoryMock struct {
	mock.Mock
}

func (m *TopicRepositoryMock) CreateTopic(ctx context.Context, title, description string, creatorID int) (models.Topic, models.Chat, error) {
	args := m.Called(ctx, title, description, creatorID)
	var topic models.Topic
	if val := args.Get(0); val != nil {
		topic = val.(models.Topic)
	}
	var chat models.Chat
	if val := args.Get(1); val != nil {
		chat = val.(models.Chat)
	}
	return topic, chat, args.Error(2)
}

func (m *TopicRepositoryMock) GetTopic(ctx context.Context, topicID int) (models.Topic, error) {
	args := m.Called(ctx, topicID)
	var topic models.Topic
	if val := args.Get(0); val != nil {
		topic = val.(models.Topic)
	}
	return topic, args.Error(1)
}

func (m *TopicRepositoryMock) ListTopics(ctx context.Context) ([]models.Topic, error) {
	args := m.Called(ctx)
	var topics []models.Topic
	if val := args.Get(0); val != nil {
		topics = val.([]models.Topic)
	}
	return topics, args.Error(1)
}

func (m *TopicRepositoryMock) DeactivateTopic(ctx context.Context, topicID int) error {
	args := m.Called(ctx, topicID)
	return args.Error(0)
}

type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) GetChat(ctx context.Context, chatID int) (models.Chat, error) {
	args := m.Called(ctx, chatID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) GetChatByTopic(ctx context.Context, topicID int) (models.Chat, error) {
	args := m.Called(ctx, topicID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) CreateOrGetDirectChat(ctx context.Context, userID, otherID int) (models.Chat, error) {
	args := m.Called(ctx, userID, otherID)
	var chat models.Chat
	if val := args.Get(0); val != nil {
		chat = val.(models.Chat)
	}
	return chat, args.Error(1)
}

func (m *ChatRepositoryMock) IsActiveMember(ctx context.Context, chatID, userID int) (bool, error) {
	args := m.Called(ctx, chatID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ChatRepositoryMock) EnsureActiveMember(ctx context.Context, chatID, userID int) error {
	args := m.Called(ctx, chatID, userID)
	return args.Error(0)
}

func (m *ChatRepositoryMock) DeactivateMember(ctx context.Context, chatID, userID int) error {
	args := m.Called(ctx, chatID, userID)
	return args.Error(0)
}

func (m *ChatRepositoryMock) TouchLastMessage(ctx context.Context, chatID int, at time.Time) error {
	args := m.Called(ctx, chatID, at)
	return args.Error(0)
}

func (m *ChatRepositoryMock) ListSummaries(ctx context.Context, userID int) ([]models.ChatSummary, error) {
	args := m.Called(ctx, userID)
	var list []models.ChatSummary
	if val := args.Get(0); val != nil {
		list = val.([]models.ChatSummary)
	}
	return list, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) CreateMessage(ctx context.Context, chatID int, topicID *int, senderID int, content, clientKey string) (models.Message, error) {
	args := m.Called(ctx, chatID, topicID, senderID, content, clientKey)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListPage(ctx context.Context, chatID, page, limit int) ([]models.Message, models.Pagination, error) {
	args := m.Called(ctx, chatID, page, limit)
	var msgs []models.Message
	if val := args.Get(0); val != nil {
		msgs = val.([]models.Message)
	}
	var pagination models.Pagination
	if val := args.Get(1); val != nil {
		pagination = val.(models.Pagination)
	}
	return msgs, pagination, args.Error(2)
}

type BlockRepositoryMock struct {
	mock.Mock
}

func (m *BlockRepositoryMock) Block(ctx context.Context, blockerID, blockedID int, reason string) (models.UserBlock, error) {
	args := m.Called(ctx, blockerID, blockedID, reason)
	var block models.UserBlock
	if val := args.Get(0); val != nil {
		block = val.(models.UserBlock)
	}
	return block, args.Error(1)
}

func (m *BlockRepositoryMock) Unblock(ctx context.Context, blockerID, blockedID int) error {
	args := m.Called(ctx, blockerID, blockedID)
	return args.Error(0)
}

func (m *BlockRepositoryMock) ListBlocked(ctx context.Context, blockerID int) ([]models.UserBlock, error) {
	args := m.Called(ctx, blockerID)
	var blocks []models.UserBlock
	if val := args.Get(0); val != nil {
		blocks = val.([]models.UserBlock)
	}
	return blocks, args.Error(1)
}

func (m *BlockRepositoryMock) IsBlockedEitherWay(ctx context.Context, userID, otherID int) (bool, error) {
	args := m.Called(ctx, userID, otherID)
	return args.Bool(0), args.Error(1)
}

type VerifierMock struct {
	mock.Mock
}

func (m *VerifierMock) Verify(ctx context.Context, token string) (auth.Identity, error) {
	args := m.Called(ctx, token)
	var identity auth.Identity
	if val := args.Get(0); val != nil {
		identity = val.(auth.Identity)
	}
	return identity, args.Error(1)
}
