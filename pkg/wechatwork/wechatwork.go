// Package wechatwork WeChat Work group robot webhook
package wechatwork

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// DefaultBaseURL robot send API, the webhook key is appended as ?key=
const DefaultBaseURL = "https://qyapi.weixin.qq.com/cgi-bin/webhook/send"

// WeChatWorkMessage webhook request body
type WeChatWorkMessage struct {
	MsgType  string           `json:"msgtype"`
	Text     *TextContent     `json:"text,omitempty"`
	Markdown *MarkdownContent `json:"markdown,omitempty"`
}

type TextContent struct {
	Content             string   `json:"content"`
	MentionedList       []string `json:"mentioned_list,omitempty"`
	MentionedMobileList []string `json:"mentioned_mobile_list,omitempty"`
}

type MarkdownContent struct {
	Content string `json:"content"`
}

// response body, errcode 0 on success
type webhookResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// NotificationSender posts run notifications, a sender without key is disabled and sends nothing
type NotificationSender struct {
	WebhookKey string
	Enabled    bool
	BaseURL    string
	Client     *http.Client
}

func NewNotificationSender(webhookKey string) *NotificationSender {
	return &NotificationSender{
		WebhookKey: webhookKey,
		Enabled:    webhookKey != "",
		BaseURL:    DefaultBaseURL,
		Client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (ns *NotificationSender) SendText(content string, mentionedList, mentionedMobileList []string) error {
	if !ns.Enabled {
		return nil
	}
	return ns.send(WeChatWorkMessage{
		MsgType: "text",
		Text: &TextContent{
			Content:             content,
			MentionedList:       mentionedList,
			MentionedMobileList: mentionedMobileList,
		},
	})
}

func (ns *NotificationSender) SendMarkdown(content string) error {
	if !ns.Enabled {
		return nil
	}
	return ns.send(WeChatWorkMessage{
		MsgType:  "markdown",
		Markdown: &MarkdownContent{Content: content},
	})
}

func (ns *NotificationSender) send(message WeChatWorkMessage) error {
	var (
		baseURL = ns.BaseURL
		client  = ns.Client
	)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	var webhookURL = fmt.Sprintf("%s?key=%s", baseURL, ns.WebhookKey)

	jsonData, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	resp, err := client.Post(webhookURL, "application/json", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("notification status %d", resp.StatusCode)
	}
	var result webhookResponse
	if err = json.NewDecoder(resp.Body).Decode(&result); err == nil && result.ErrCode != 0 {
		return fmt.Errorf("notification errcode %d: %s", result.ErrCode, result.ErrMsg)
	}

	slog.Info("notification sent", "msgtype", message.MsgType)
	return nil
}
