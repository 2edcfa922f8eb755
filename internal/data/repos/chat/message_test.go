package chat

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/galaxychat-backend/internal/data/repos/testutil"
	types "github.com/yungbote/galaxychat-backend/internal/domain"
	domainchat "github.com/yungbote/galaxychat-backend/internal/domain/chat"
	"github.com/yungbote/galaxychat-backend/internal/platform/dbctx"
)

func newChat(t *testing.T, repo ChatRepo, dbc dbctx.Context, owner string) *types.Chat {
	t.Helper()
	c, _, err := repo.CreateIfAbsent(dbc, &types.Chat{ID: "c-" + uuid.NewString(), UserID: owner, Title: "t"})
	if err != nil {
		t.Fatalf("create chat: %v", err)
	}
	return c
}

func TestMessageRepoCreateAssignsIncreasingSeqAndTime(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	c := newChat(t, NewChatRepo(db, log), dbc, "owner")
	repo := NewMessageRepo(db, log)

	// three separate inserts plus one batch, back to back
	var all []*types.Message
	for _, text := range []string{"a", "b", "c"} {
		rows, err := repo.Create(dbc, c.ID, []*types.Message{testutil.TextMessage(domainchat.RoleUser, text)})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		all = append(all, rows...)
	}
	batch, err := repo.Create(dbc, c.ID, []*types.Message{
		testutil.TextMessage(domainchat.RoleAssistant, "d"),
		testutil.TextMessage(domainchat.RoleAssistant, "e"),
	})
	if err != nil {
		t.Fatalf("Create batch: %v", err)
	}
	all = append(all, batch...)

	listed, err := repo.ListByChat(dbc, c.ID, 0)
	if err != nil {
		t.Fatalf("ListByChat: %v", err)
	}
	if len(listed) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(listed))
	}
	for i := 1; i < len(listed); i++ {
		if listed[i].Seq <= listed[i-1].Seq {
			t.Fatalf("seq not increasing at %d", i)
		}
		if !listed[i].CreatedAt.After(listed[i-1].CreatedAt) {
			t.Fatalf("created_at not strictly increasing at %d: %s vs %s", i, listed[i-1].CreatedAt, listed[i].CreatedAt)
		}
		if listed[i].ID != all[i].ID {
			t.Fatalf("order mismatch at %d", i)
		}
	}
}

func TestMessageRepoListByChatKeepsNewestWithinLimit(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	c := newChat(t, NewChatRepo(db, log), dbc, "owner")
	repo := NewMessageRepo(db, log)

	const limit = 5
	var all []*types.Message
	for i := 0; i < limit+1; i++ {
		rows, err := repo.Create(dbc, c.ID, []*types.Message{testutil.TextMessage(domainchat.RoleUser, fmt.Sprintf("m%d", i))})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		all = append(all, rows...)
	}

	listed, err := repo.ListByChat(dbc, c.ID, limit)
	if err != nil {
		t.Fatalf("ListByChat: %v", err)
	}
	if len(listed) != limit {
		t.Fatalf("expected %d messages, got %d", limit, len(listed))
	}
	for i, m := range listed {
		if m.ID != all[i+1].ID {
			t.Fatalf("position %d: got %s, want %s (oldest message should be dropped)", i, m.ID, all[i+1].ID)
		}
	}
}

func TestMessageRepoCreateSkipsExistingIDs(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	c := newChat(t, NewChatRepo(db, log), dbc, "owner")
	repo := NewMessageRepo(db, log)

	m := testutil.TextMessage(domainchat.RoleUser, "Hello")
	if _, err := repo.Create(dbc, c.ID, []*types.Message{m}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	again := *m
	again.Parts = domainchat.Parts{domainchat.TextPart{Text: "changed"}}
	rows, err := repo.Create(dbc, c.ID, []*types.Message{&again})
	if err != nil {
		t.Fatalf("Create again: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected duplicate to be skipped, got %d rows", len(rows))
	}
	stored, _ := repo.GetByID(dbc, m.ID)
	if stored.Parts.FirstText() != "Hello" {
		t.Fatalf("duplicate overwrote message: %q", stored.Parts.FirstText())
	}
}

func TestMessageRepoCreateUnknownChat(t *testing.T) {
	db := testutil.DB(t)
	repo := NewMessageRepo(db, testutil.Logger(t))
	_, err := repo.Create(dbctx.Context{Ctx: context.Background()}, "nope", []*types.Message{testutil.TextMessage(domainchat.RoleUser, "x")})
	if err == nil {
		t.Fatalf("expected error for unknown chat")
	}
}

func TestMessageRepoDeleteTrailing(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	c := newChat(t, NewChatRepo(db, log), dbc, "owner")
	other := newChat(t, NewChatRepo(db, log), dbc, "owner")
	repo := NewMessageRepo(db, log)

	var ms []*types.Message
	for _, text := range []string{"m1", "m2", "m3", "m4", "m5"} {
		rows, err := repo.Create(dbc, c.ID, []*types.Message{testutil.TextMessage(domainchat.RoleUser, text)})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		ms = append(ms, rows[0])
	}
	if _, err := repo.Create(dbc, other.ID, []*types.Message{testutil.TextMessage(domainchat.RoleUser, "elsewhere")}); err != nil {
		t.Fatalf("Create other: %v", err)
	}

	target, _ := repo.GetByID(dbc, ms[2].ID)
	n, err := repo.DeleteTrailing(dbc, c.ID, target.CreatedAt, target.Seq)
	if err != nil {
		t.Fatalf("DeleteTrailing: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 deleted, got %d", n)
	}
	left, _ := repo.ListByChat(dbc, c.ID, 0)
	if len(left) != 2 || left[0].ID != ms[0].ID || left[1].ID != ms[1].ID {
		t.Fatalf("unexpected survivors")
	}
	untouched, _ := repo.ListByChat(dbc, other.ID, 0)
	if len(untouched) != 1 {
		t.Fatalf("other chat affected")
	}
}

func TestMessageRepoDeleteTrailingEqualTimestampsUsesSeq(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	c := newChat(t, NewChatRepo(db, log), dbc, "owner")
	repo := NewMessageRepo(db, log)

	// rows written directly so they share one timestamp
	ts := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)
	for i := int64(1); i <= 3; i++ {
		m := testutil.TextMessage(domainchat.RoleUser, "same")
		m.ChatID = c.ID
		m.Seq = i
		m.CreatedAt = ts
		m.UpdatedAt = ts
		if err := db.Create(m).Error; err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	n, err := repo.DeleteTrailing(dbc, c.ID, ts, 2)
	if err != nil {
		t.Fatalf("DeleteTrailing: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected seq 2 and 3 deleted, got %d", n)
	}
	left, _ := repo.ListByChat(dbc, c.ID, 0)
	if len(left) != 1 || left[0].Seq != 1 {
		t.Fatalf("unexpected survivors: %+v", left)
	}
}

func TestMessageRepoListMediaByUser(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	chats := NewChatRepo(db, log)
	repo := NewMessageRepo(db, log)
	owner := "user_" + uuid.NewString()
	mine := newChat(t, chats, dbc, owner)
	theirs := newChat(t, chats, dbc, "user_"+uuid.NewString())

	withFile := &types.Message{
		ID:   uuid.NewString(),
		Role: domainchat.RoleUser,
		Parts: domainchat.Parts{
			domainchat.TextPart{Text: "look"},
			domainchat.FilePart{URL: "https://cdn.example.com/a.png", MediaType: "image/png"},
		},
	}
	if _, err := repo.Create(dbc, mine.ID, []*types.Message{testutil.TextMessage(domainchat.RoleUser, "plain"), withFile}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	foreign := *withFile
	foreign.ID = uuid.NewString()
	if _, err := repo.Create(dbc, theirs.ID, []*types.Message{&foreign}); err != nil {
		t.Fatalf("Create foreign: %v", err)
	}

	media, err := repo.ListMediaByUser(dbc, owner, 0)
	if err != nil {
		t.Fatalf("ListMediaByUser: %v", err)
	}
	if len(media) != 1 || media[0].ID != withFile.ID {
		t.Fatalf("unexpected media: %+v", media)
	}
	if !media[0].Parts.HasFile() {
		t.Fatalf("parts not decoded")
	}
}
