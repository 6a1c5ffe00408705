package discord

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCreateChannel_SendsBotAuthAndBody(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c-1","name":"ticket-alice","parent_id":"cat"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", "tok", time.Second)
	ch, err := c.CreateChannel(context.Background(), "g-1", CreateChannelParams{
		Name: "ticket-alice", Type: ChannelTypeGuildText, ParentID: "cat", Topic: "Order ticket for Alice",
	})
	if err != nil {
		t.Fatalf("CreateChannel: %v", err)
	}
	if ch.ID != "c-1" {
		t.Fatalf("channel id = %q", ch.ID)
	}
	if gotAuth != "Bot tok" {
		t.Fatalf("auth header = %q", gotAuth)
	}
	if gotPath != "/guilds/g-1/channels" {
		t.Fatalf("path = %q", gotPath)
	}
	// type must be present even though it is zero.
	if v, ok := gotBody["type"]; !ok || v.(float64) != 0 {
		t.Fatalf("type missing from body: %#v", gotBody)
	}
	if gotBody["parent_id"] != "cat" || gotBody["topic"] != "Order ticket for Alice" {
		t.Fatalf("body unexpected: %#v", gotBody)
	}
}

func TestCreateChannel_NonSuccessIsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"message":"Missing Permissions","code":50013}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", time.Second)
	_, err := c.CreateChannel(context.Background(), "g", CreateChannelParams{Name: "x"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T %v", err, err)
	}
	if apiErr.Status != http.StatusForbidden || apiErr.Op != "create channel" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
	if !strings.Contains(err.Error(), "failed to create channel") || !strings.Contains(err.Error(), "Missing Permissions") {
		t.Fatalf("error text = %q", err.Error())
	}
	if !IsAPIError(err) {
		t.Fatalf("IsAPIError should be true")
	}
}

func TestCreateWebhook_And_WebhookURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/channels/c-1/webhooks" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["name"] != "Website Chat Bridge" {
			t.Errorf("webhook name = %q", body["name"])
		}
		_, _ = io.WriteString(w, `{"id":"wh-1","token":"sekret","channel_id":"c-1"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", 0)
	wh, err := c.CreateWebhook(context.Background(), "c-1", "Website Chat Bridge")
	if err != nil {
		t.Fatalf("CreateWebhook: %v", err)
	}
	if got, want := c.WebhookURL(wh), srv.URL+"/webhooks/wh-1/sekret"; got != want {
		t.Fatalf("WebhookURL = %q want %q", got, want)
	}
}

func TestCreateWebhook_MissingToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":"wh-1"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", time.Second)
	if _, err := c.CreateWebhook(context.Background(), "c-1", "n"); err == nil {
		t.Fatalf("expected error for webhook without token")
	}
}

func TestExecuteWebhook_NoAuthAndNoContent(t *testing.T) {
	var gotAuth string
	var got WebhookParams
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", time.Second)
	err := c.ExecuteWebhook(context.Background(), srv.URL+"/webhooks/1/t", WebhookParams{
		Content: "hi", Username: "Alice", AvatarURL: "https://a/0.png",
	})
	if err != nil {
		t.Fatalf("ExecuteWebhook: %v", err)
	}
	if gotAuth != "" {
		t.Fatalf("webhook execution must not send the bot token, got %q", gotAuth)
	}
	if got.Content != "hi" || got.Username != "Alice" || got.AvatarURL != "https://a/0.png" {
		t.Fatalf("payload unexpected: %+v", got)
	}
}

func TestListMessages_QueryAndDecode(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = io.WriteString(w, `[
			{"id":"3","author":{"id":"u2","username":"staff"},"content":"hey","timestamp":"t3"},
			{"id":"2","author":{"id":"w","username":"Alice","bot":true},"content":"hi","timestamp":"t2","webhook_id":"wh-1"}
		]`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok", time.Second)
	msgs, err := c.ListMessages(context.Background(), "c-1", "1", 50)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if gotQuery != "after=1&limit=50" {
		t.Fatalf("query = %q", gotQuery)
	}
	if len(msgs) != 2 || msgs[0].ID != "3" || msgs[1].WebhookID != "wh-1" || !msgs[1].Author.Bot {
		t.Fatalf("decoded messages unexpected: %+v", msgs)
	}

	// Without a cursor there is no after parameter.
	if _, err := c.ListMessages(context.Background(), "c-1", "", 50); err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if gotQuery != "limit=50" {
		t.Fatalf("query without cursor = %q", gotQuery)
	}
}

func TestListMessages_NullBodyIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `null`)
	}))
	defer srv.Close()

	msgs, err := NewClient(srv.URL, "tok", time.Second).ListMessages(context.Background(), "c", "", 50)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if msgs == nil || len(msgs) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", msgs)
	}
}

func TestDo_TransportErrorIsNotAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening

	err := NewClient(srv.URL, "tok", time.Second).ExecuteWebhook(context.Background(), srv.URL+"/webhooks/1/t", WebhookParams{Content: "x"})
	if err == nil {
		t.Fatalf("expected transport error")
	}
	if IsAPIError(err) {
		t.Fatalf("transport failure must not be reported as *APIError")
	}
	if !strings.HasPrefix(err.Error(), "execute webhook:") {
		t.Fatalf("error should name the operation, got %q", err.Error())
	}
}
