package wechatwork

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNotificationSender(t *testing.T) {
	var (
		received []WeChatWorkMessage
		keys     []string
		errcode  int
	)
	var server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var message WeChatWorkMessage
		if err := json.NewDecoder(r.Body).Decode(&message); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		received = append(received, message)
		keys = append(keys, r.URL.Query().Get("key"))
		json.NewEncoder(w).Encode(webhookResponse{ErrCode: errcode, ErrMsg: "ok"})
	}))
	defer server.Close()

	var sender = NewNotificationSender("test-key")
	sender.BaseURL = server.URL

	t.Run("markdown", func(t *testing.T) {
		if err := sender.SendMarkdown("### DEGAnalysis"); err != nil {
			t.Fatal(err)
		}
		var got = received[len(received)-1]
		if got.MsgType != "markdown" || got.Markdown == nil || got.Markdown.Content != "### DEGAnalysis" || got.Text != nil {
			t.Errorf("received %+v", got)
		}
		if keys[len(keys)-1] != "test-key" {
			t.Errorf("key = %q; want test-key", keys[len(keys)-1])
		}
	})

	t.Run("text", func(t *testing.T) {
		if err := sender.SendText("done", []string{"@all"}, nil); err != nil {
			t.Fatal(err)
		}
		var got = received[len(received)-1]
		if got.MsgType != "text" || got.Text == nil || got.Text.Content != "done" || got.Text.MentionedList[0] != "@all" {
			t.Errorf("received %+v", got)
		}
	})

	t.Run("errcode", func(t *testing.T) {
		errcode = 93000
		defer func() { errcode = 0 }()
		if err := sender.SendText("done", nil, nil); err == nil {
			t.Error("SendText() want error on errcode 93000")
		}
	})

	t.Run("disabled", func(t *testing.T) {
		var n = len(received)
		var disabled = NewNotificationSender("")
		disabled.BaseURL = server.URL
		if err := disabled.SendMarkdown("x"); err != nil {
			t.Fatal(err)
		}
		if len(received) != n {
			t.Error("disabled sender posted a message")
		}
	})

	t.Run("status", func(t *testing.T) {
		var failing = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer failing.Close()
		var sender = NewNotificationSender("k")
		sender.BaseURL = failing.URL
		if err := sender.SendMarkdown("x"); err == nil {
			t.Error("SendMarkdown() want error on 502")
		}
	})
}
