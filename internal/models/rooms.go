package models

import "fmt"

// Room keys identify runtime fan-out groups, independent of persisted
// membership.

func TopicRoom(topicID int) string { return fmt.Sprintf("topic:%d", topicID) }
func ChatRoom(chatID int) string   { return fmt.Sprintf("chat:%d", chatID) }
func UserRoom(userID int) string   { return fmt.Sprintf("user:%d", userID) }
