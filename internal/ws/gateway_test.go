package ws

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"discussion-service/internal/apperrors"
	"discussion-service/internal/auth"
	"discussion-service/internal/mocks"
	"discussion-service/internal/models"
	"discussion-service/internal/pipeline"
	"discussion-service/internal/presence"
)

func fullIdentitySession() *Session {
	return &Session{
		ID: "s1",
		Identity: auth.Identity{
			UserID:   7,
			Username: "alice",
			Email:    "alice@example.com",
			Role:     "admin",
		},
		send:  make(chan []byte, 8),
		rooms: make(map[string]struct{}),
	}
}

func TestDispatchSendCarriesVerifiedClaims(t *testing.T) {
	users := new(mocks.UserRepositoryMock)
	topics := new(mocks.TopicRepositoryMock)
	chats := new(mocks.ChatRepositoryMock)
	messages := new(mocks.MessageRepositoryMock)
	sender := pipeline.New(users, topics, chats, messages, nil)

	// Provisioning must see the exact claims the handshake verified, email
	// and role included, not a truncated identity.
	users.On("EnsureUser", mock.Anything, models.User{
		ID:       7,
		Username: "alice",
		Email:    "alice@example.com",
		Role:     "admin",
	}).Return(nil).Once()
	users.On("GetUser", mock.Anything, 7).Return(models.User{ID: 7, Username: "alice"}, nil)
	chats.On("GetChat", mock.Anything, 9).Return(models.Chat{ID: 9}, nil)
	chats.On("IsActiveMember", mock.Anything, 9, 7).Return(true, nil)
	messages.On("CreateMessage", mock.Anything, 9, (*int)(nil), 7, "hi", "key-1").
		Return(models.Message{ID: 1, ChatID: 9, SenderID: 7, Content: "hi"}, nil)
	chats.On("TouchLastMessage", mock.Anything, 9, mock.Anything).Return(nil)

	g := &Gateway{
		hub:      NewHub(),
		presence: presence.NewStore(0),
		sender:   sender,
		topics:   topics,
		chats:    chats,
	}
	s := fullIdentitySession()

	g.dispatch(context.Background(), s, models.ClientEvent{
		Event:     models.EventSendMessage,
		AckID:     "a1",
		ChatID:    9,
		Content:   "hi",
		ClientKey: "key-1",
	})

	users.AssertExpectations(t)

	var ack models.ServerEvent
	require.NoError(t, json.Unmarshal(<-s.send, &ack))
	assert.Equal(t, models.EventAck, ack.Event)
	assert.Equal(t, "a1", ack.AckID)
	assert.True(t, ack.Success)
	require.NotNil(t, ack.Message)
	assert.Equal(t, 1, ack.Message.ID)
}

func TestValidateTokenFailsClosed(t *testing.T) {
	verifier := new(mocks.VerifierMock)
	g := &Gateway{verifier: verifier}

	_, err := g.validateToken(context.Background(), "")
	require.ErrorIs(t, err, apperrors.ErrUnauthenticated)

	_, err = g.validateToken(context.Background(), "garbage")
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)

	verifier.AssertNotCalled(t, "Verify", mock.Anything, mock.Anything)
}

func TestValidateTokenDelegatesBearer(t *testing.T) {
	verifier := new(mocks.VerifierMock)
	g := &Gateway{verifier: verifier}

	verifier.On("Verify", mock.Anything, "tok-1").
		Return(auth.Identity{UserID: 7, Username: "alice", Email: "alice@example.com", Role: "admin"}, nil).Once()

	identity, err := g.validateToken(context.Background(), "Bearer tok-1")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", identity.Email)
	assert.Equal(t, "admin", identity.Role)
	verifier.AssertExpectations(t)
}
