package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	chatdomain "github.com/boddenberg/sellernotes-bot-go/internal/chat/domain"
	"github.com/boddenberg/sellernotes-bot-go/internal/infra/session"

	"go.uber.org/zap"
)

func newTestChatService(h *harness) (*ChatService, *session.MemoryStore) {
	store := session.NewMemoryStore(time.Hour)
	svc := NewChatService(h.main, store, 4, fixedClock, h.metrics, zap.NewNop())
	return svc, store
}

func message(id, text string) *chatdomain.Activity {
	return &chatdomain.Activity{
		Type:      "message",
		ID:        id,
		ChannelID: "test",
		From:      chatdomain.ChannelAccount{ID: "user"},
		Text:      text,
	}
}

func TestChatService_SystemActivitiesAreIgnored(t *testing.T) {
	h := newHarness(t)
	svc, store := newTestChatService(h)

	for _, typ := range []string{"conversationUpdate", "typing", "ping", "deleteUserData", "contactRelationUpdate", "bogus"} {
		act := message("1", "")
		act.Type = typ
		resp, err := svc.ProcessActivity(context.Background(), act)
		if err != nil || resp != nil {
			t.Errorf("%s: expected nil, nil; got %v, %v", typ, resp, err)
		}
	}

	sess, _ := store.Load(context.Background(), "test:user")
	if sess != nil {
		t.Error("system activities must not create a session")
	}
	if got := h.metrics.GetDialogSnapshot().Activities["typing"]; got != 1 {
		t.Errorf("expected typing to be counted once, got %d", got)
	}
}

func TestChatService_MessageTurn(t *testing.T) {
	h := newHarness(t)
	svc, store := newTestChatService(h)

	resp, err := svc.ProcessActivity(context.Background(), message("act-1", "ahoj"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Replies) != 1 {
		t.Fatalf("expected one reply, got %d", len(resp.Replies))
	}
	r := resp.Replies[0]
	if r.ID == "" || r.Type != "message" || r.ReplyToID != "act-1" || r.Locale != chatdomain.DefaultLocale {
		t.Errorf("unexpected reply envelope %+v", r)
	}
	if !strings.Contains(r.Text, "https://login.test") {
		t.Errorf("expected login prompt, got %q", r.Text)
	}

	sess, err := store.Load(context.Background(), "test:user")
	if err != nil || sess == nil {
		t.Fatalf("session must be saved: %v", err)
	}
	if sess.Dialog == nil || sess.Dialog.Stage != chatdomain.StageLogin {
		t.Errorf("expected suspended login, got %+v", sess.Dialog)
	}
	if !sess.UpdatedAt.Equal(thursday) {
		t.Errorf("unexpected UpdatedAt %v", sess.UpdatedAt)
	}

	resp, err = svc.ProcessActivity(context.Background(), message("act-2", "123456"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Replies) != 2 || resp.Replies[1].Text != msgSearchPrompt {
		t.Errorf("expected login confirmation and search prompt, got %+v", resp.Replies)
	}
	if resp.Replies[0].ID == resp.Replies[1].ID {
		t.Error("reply ids must be unique")
	}
}

func TestChatService_FailedTurnIsNotSaved(t *testing.T) {
	h := newHarness(t)
	h.identity.fail = true
	svc, store := newTestChatService(h)

	if _, err := svc.ProcessActivity(context.Background(), message("1", "ahoj")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resp, err := svc.ProcessActivity(context.Background(), message("2", "123456"))
	if err == nil || resp != nil {
		t.Fatalf("expected error, got %v", resp)
	}

	sess, _ := store.Load(context.Background(), "test:user")
	if sess.AccessToken != "" {
		t.Error("token must not be stored")
	}
	if sess.Dialog.Login == nil || sess.Dialog.Login.Stage != chatdomain.LoginAwaitingCode {
		t.Errorf("stored session must be the one before the failed turn, got %+v", sess.Dialog)
	}
}

func TestChatService_PanicIsRecovered(t *testing.T) {
	h := newHarness(t)
	h.directory.panics = true
	svc, store := newTestChatService(h)
	if err := store.Save(context.Background(), &chatdomain.Session{Key: "test:user", AccessToken: "valid-token"}); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.ProcessActivity(context.Background(), message("1", "")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := svc.ProcessActivity(context.Background(), message("2", "Test"))
	if err == nil || !strings.Contains(err.Error(), "dialog panic") {
		t.Fatalf("expected recovered panic, got %v", err)
	}

	sess, _ := store.Load(context.Background(), "test:user")
	if sess.Dialog.Stage != chatdomain.StageSearch || sess.Dialog.Search.Stage != chatdomain.SearchAwaitingQuery {
		t.Errorf("session must stay at the search prompt, got %+v", sess.Dialog)
	}
}

func TestChatService_ConcurrentUsers(t *testing.T) {
	h := newHarness(t)
	svc, store := newTestChatService(h)

	users := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	var wg sync.WaitGroup
	for _, u := range users {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			act := message(u, "ahoj")
			act.From.ID = u
			if _, err := svc.ProcessActivity(context.Background(), act); err != nil {
				t.Errorf("user %s: %v", u, err)
			}
		}(u)
	}
	wg.Wait()

	for _, u := range users {
		sess, _ := store.Load(context.Background(), "test:"+u)
		if sess == nil || sess.Dialog == nil {
			t.Errorf("user %s: session missing", u)
		}
	}
	if svc.locks.size() != 0 {
		t.Errorf("locks must be released, %d left", svc.locks.size())
	}
}
