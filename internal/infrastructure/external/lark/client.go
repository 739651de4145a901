package lark

import (
	"context"
	"fmt"

	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkIm "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"
)

// Receive id types accepted by the message API
const (
	ReceiveIDTypeChat   = "chat_id"
	ReceiveIDTypeOpenID = "open_id"
)

// Config holds Lark bot configuration
type Config struct {
	AppID        string
	AppSecret    string
	ReviewChatID string
	// DashboardURL is linked from notifications when set
	DashboardURL string
}

// Enabled reports whether enough is configured to send messages
func (c Config) Enabled() bool {
	return c.AppID != "" && c.AppSecret != "" && c.ReviewChatID != ""
}

// MessageSender sends one message and returns its id
type MessageSender interface {
	SendMessage(ctx context.Context, receiveIDType, receiveID, msgType, content string) (string, error)
}

// MessageAPI sends messages through the Lark open platform SDK
type MessageAPI struct {
	client *lark.Client
	logger *zap.Logger
}

// NewMessageAPI creates a new SDK-backed message sender
func NewMessageAPI(cfg Config, logger *zap.Logger) *MessageAPI {
	client := lark.NewClient(cfg.AppID, cfg.AppSecret,
		lark.WithLogLevel(larkcore.LogLevelInfo),
		lark.WithEnableTokenCache(true),
	)
	return &MessageAPI{
		client: client,
		logger: logger,
	}
}

// SendMessage sends a message to a user or group
func (m *MessageAPI) SendMessage(ctx context.Context, receiveIDType, receiveID, msgType, content string) (string, error) {
	req := larkIm.NewCreateMessageReqBuilder().
		ReceiveIdType(receiveIDType).
		Body(larkIm.NewCreateMessageReqBodyBuilder().
			ReceiveId(receiveID).
			MsgType(msgType).
			Content(content).
			Build()).
		Build()

	resp, err := m.client.Im.Message.Create(ctx, req)
	if err != nil {
		m.logger.Error("Failed to send message",
			zap.String("receive_id", receiveID),
			zap.Error(err))
		return "", fmt.Errorf("failed to send message: %w", err)
	}

	if !resp.Success() {
		m.logger.Error("API returned failure",
			zap.String("receive_id", receiveID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return "", fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}
	return messageID, nil
}
