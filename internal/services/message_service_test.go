package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"golang.org/x/text/language"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sitewise/go-project-backend/internal/domain"
	"github.com/sitewise/go-project-backend/internal/repo"
)

// ---------- test helpers ----------

func newMsgDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:msgsvc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

// dbChatRepo adapts the repo free functions to the ChatRepo interface so
// message tests run against the real persistence path.
type dbChatRepo struct{}

func (dbChatRepo) CreateChat(ctx context.Context, db *gorm.DB, userID string, projectID *string, title string) (*domain.Chat, error) {
	return repo.CreateChat(ctx, db, userID, projectID, title)
}

func (dbChatRepo) ListChats(ctx context.Context, db *gorm.DB, userID string) ([]domain.Chat, error) {
	return repo.ListChats(ctx, db, userID)
}

func (dbChatRepo) ListChatsByProject(ctx context.Context, db *gorm.DB, userID, projectID string) ([]domain.Chat, error) {
	return repo.ListChatsByProject(ctx, db, userID, projectID)
}

func (dbChatRepo) GetChat(ctx context.Context, db *gorm.DB, id string) (*domain.Chat, error) {
	return repo.GetChat(ctx, db, id)
}

func (dbChatRepo) UpdateChatTitle(ctx context.Context, db *gorm.DB, id, title string) error {
	return repo.UpdateChatTitle(ctx, db, id, title)
}

func (dbChatRepo) UpdateChatSummary(ctx context.Context, db *gorm.DB, id, summary string, at time.Time, countAtSummary int) error {
	return repo.UpdateChatSummary(ctx, db, id, summary, at, countAtSummary)
}

func (dbChatRepo) DeleteChat(ctx context.Context, db *gorm.DB, id string) error {
	return repo.DeleteChat(ctx, db, id)
}

func (dbChatRepo) CountChats(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	return repo.CountChats(ctx, db, userID)
}

func (dbChatRepo) ListChatsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Chat, error) {
	return repo.ListChatsPage(ctx, db, userID, offset, limit)
}

// newMessageService wires a MessageService against the real DB path, with an
// optional summarizer on the chat side.
func newMessageService(db *gorm.DB, ai Summarizer) *MessageService {
	return &MessageService{DB: db, Chats: NewChatService(db, dbChatRepo{}, ai)}
}

// ---------- Append() validation ----------

func TestMessageService_Append_InvalidRole(t *testing.T) {
	s := &MessageService{}
	_, err := s.Append(context.Background(), "u1", "c1", "robot", "hi", nil)
	if err != ErrInvalidRole {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
}

func TestMessageService_Append_EmptyContent(t *testing.T) {
	s := &MessageService{}
	_, err := s.Append(context.Background(), "u1", "c1", domain.RoleUser, "   \t ", nil)
	if err != ErrEmptyContent {
		t.Fatalf("expected ErrEmptyContent, got %v", err)
	}
}

func TestMessageService_Append_TooLong(t *testing.T) {
	s := &MessageService{MaxContentRunes: 4}
	_, err := s.Append(context.Background(), "u1", "c1", domain.RoleUser, "héllo", nil)
	if err != ErrTooLong {
		t.Fatalf("expected ErrTooLong for 5 runes over a 4 cap, got %v", err)
	}
}

func TestMessageService_Append_ChatNotFound(t *testing.T) {
	db := newMsgDB(t, &domain.Chat{}, &domain.Message{})
	s := newMessageService(db, nil)

	if _, err := s.Append(context.Background(), "u1", "c-missing", domain.RoleUser, "hello", nil); err != ErrChatNotFound {
		t.Fatalf("expected ErrChatNotFound for a missing chat, got %v", err)
	}

	if err := db.Create(&domain.Chat{ID: "c1", UserID: "bob", Title: "t"}).Error; err != nil {
		t.Fatalf("seed chat: %v", err)
	}
	if _, err := s.Append(context.Background(), "alice", "c1", domain.RoleUser, "hello", nil); err != ErrChatNotFound {
		t.Fatalf("expected ErrChatNotFound for a foreign chat, got %v", err)
	}
}

// ---------- Append() persistence ----------

func TestMessageService_Append_PersistsAndTouchesChat(t *testing.T) {
	db := newMsgDB(t, &domain.Chat{}, &domain.Message{})
	if err := db.Create(&domain.Chat{ID: "c1", UserID: "u1", Title: "Budget review"}).Error; err != nil {
		t.Fatalf("seed chat: %v", err)
	}
	// Push the activity clock into the past; UpdateColumn skips auto-times.
	old := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	if err := db.Model(&domain.Chat{}).Where("id = ?", "c1").UpdateColumn("updated_at", old).Error; err != nil {
		t.Fatalf("age chat: %v", err)
	}

	s := newMessageService(db, nil)
	msg, err := s.Append(context.Background(), "u1", "c1", domain.RoleAssistant, "  quoted 18 panels  ", nil)
	if err != nil {
		t.Fatalf("Append error: %v", err)
	}
	if msg.Role != domain.RoleAssistant || msg.Content != "quoted 18 panels" {
		t.Fatalf("unexpected message: %+v", msg)
	}

	var stored domain.Message
	if err := db.First(&stored, "id = ?", msg.ID).Error; err != nil {
		t.Fatalf("load message: %v", err)
	}
	if stored.ChatID != "c1" {
		t.Fatalf("stored.ChatID = %q", stored.ChatID)
	}

	var after domain.Chat
	if err := db.First(&after, "id = ?", "c1").Error; err != nil {
		t.Fatalf("load chat: %v", err)
	}
	if !after.UpdatedAt.After(old) {
		t.Fatalf("append must bump the chat activity clock, got %v", after.UpdatedAt)
	}
	if after.Title != "Budget review" {
		t.Fatalf("assistant append must not retitle; got %q", after.Title)
	}
}

func TestMessageService_Append_SourcesPersisted(t *testing.T) {
	db := newMsgDB(t, &domain.Chat{}, &domain.Message{})
	if err := db.Create(&domain.Chat{ID: "c1", UserID: "u1", Title: "t"}).Error; err != nil {
		t.Fatalf("seed chat: %v", err)
	}

	s := newMessageService(db, nil)
	srcs := []domain.Source{
		{Content: "thread about drywall", Score: 0.91, Sender: "pm@site.com", Kind: "email"},
		{Content: "spec sheet p.4", Score: 0.77, Kind: "pdf"},
	}
	msg, err := s.Append(context.Background(), "u1", "c1", domain.RoleAssistant, "per the submittal, 5/8 inch", srcs)
	if err != nil {
		t.Fatalf("Append error: %v", err)
	}

	var stored domain.Message
	if err := db.First(&stored, "id = ?", msg.ID).Error; err != nil {
		t.Fatalf("load message: %v", err)
	}
	got, err := stored.SourceList()
	if err != nil {
		t.Fatalf("SourceList error: %v", err)
	}
	if len(got) != 2 || got[0].Sender != "pm@site.com" || got[1].Kind != "pdf" {
		t.Fatalf("sources did not round-trip: %+v", got)
	}
}

// ---------- Append() auto-title ----------

func TestMessageService_Append_AutoTitlesFirstUserMessage(t *testing.T) {
	db := newMsgDB(t, &domain.Chat{}, &domain.Message{})
	if err := db.Create(&domain.Chat{ID: "c1", UserID: "u1", Title: "New chat"}).Error; err != nil {
		t.Fatalf("seed chat: %v", err)
	}

	s := newMessageService(db, nil)
	if _, err := s.Append(context.Background(), "u1", "c1", domain.RoleUser, "what is the cost of the lobby renovation", nil); err != nil {
		t.Fatalf("Append error: %v", err)
	}

	var after domain.Chat
	if err := db.First(&after, "id = ?", "c1").Error; err != nil {
		t.Fatalf("load chat: %v", err)
	}
	if after.Title != "What Cost Lobby Renovation" {
		t.Fatalf("auto title = %q; want %q", after.Title, "What Cost Lobby Renovation")
	}

	// A later message never retitles, even against a placeholder-looking one.
	if _, err := s.Append(context.Background(), "u1", "c1", domain.RoleUser, "completely different topic here", nil); err != nil {
		t.Fatalf("second Append error: %v", err)
	}
	if err := db.First(&after, "id = ?", "c1").Error; err != nil {
		t.Fatalf("reload chat: %v", err)
	}
	if after.Title != "What Cost Lobby Renovation" {
		t.Fatalf("title must not change after the first message; got %q", after.Title)
	}
}

func TestMessageService_Append_NoAutoTitle_CustomTitle(t *testing.T) {
	db := newMsgDB(t, &domain.Chat{}, &domain.Message{})
	if err := db.Create(&domain.Chat{ID: "c1", UserID: "u1", Title: "Already Good"}).Error; err != nil {
		t.Fatalf("seed chat: %v", err)
	}

	s := newMessageService(db, nil)
	if _, err := s.Append(context.Background(), "u1", "c1", domain.RoleUser, "what about the roof", nil); err != nil {
		t.Fatalf("Append error: %v", err)
	}

	var after domain.Chat
	if err := db.First(&after, "id = ?", "c1").Error; err != nil {
		t.Fatalf("load chat: %v", err)
	}
	if after.Title != "Already Good" {
		t.Fatalf("custom title must stay; got %q", after.Title)
	}
}

func TestMessageService_Append_StopwordOnlyContentKeepsPlaceholder(t *testing.T) {
	db := newMsgDB(t, &domain.Chat{}, &domain.Message{})
	if err := db.Create(&domain.Chat{ID: "c1", UserID: "u1", Title: "New chat"}).Error; err != nil {
		t.Fatalf("seed chat: %v", err)
	}

	s := newMessageService(db, nil)
	// Every token is a stop word, so no title can be derived.
	if _, err := s.Append(context.Background(), "u1", "c1", domain.RoleUser, "is it that the and of", nil); err != nil {
		t.Fatalf("Append error: %v", err)
	}

	var after domain.Chat
	if err := db.First(&after, "id = ?", "c1").Error; err != nil {
		t.Fatalf("load chat: %v", err)
	}
	if after.Title != "New chat" {
		t.Fatalf("placeholder must survive an untitleable message; got %q", after.Title)
	}
}

// ---------- Append() summary cadence ----------

func TestMessageService_Append_SummaryCadence(t *testing.T) {
	db := newMsgDB(t, &domain.Chat{}, &domain.Message{})
	if err := db.Create(&domain.Chat{ID: "c1", UserID: "u1", Title: "t"}).Error; err != nil {
		t.Fatalf("seed chat: %v", err)
	}

	ai := &fakeSummarizer{}
	s := newMessageService(db, ai)

	push := func(i int) {
		t.Helper()
		role := domain.RoleUser
		if i%2 == 0 {
			role = domain.RoleAssistant
		}
		if _, err := s.Append(context.Background(), "u1", "c1", role, fmt.Sprintf("message number %d", i), nil); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	// Eight messages accumulate without a refresh; the cadence is measured
	// against what existed before each append.
	for i := 1; i <= 8; i++ {
		push(i)
	}
	if ai.calls != 0 {
		t.Fatalf("summarizer ran before the cadence: %d calls", ai.calls)
	}

	push(9)
	if ai.calls != 1 {
		t.Fatalf("ninth message must trigger one refresh, got %d", ai.calls)
	}
	if len(ai.gotMessages) != 9 {
		t.Fatalf("refresh must fold in the triggering message too, got %d", len(ai.gotMessages))
	}

	var ch domain.Chat
	if err := db.First(&ch, "id = ?", "c1").Error; err != nil {
		t.Fatalf("load chat: %v", err)
	}
	if ch.MessageCountAtSummary != 9 || ch.Summary != "fresh summary" {
		t.Fatalf("stored watermark/summary = (%d, %q); want (9, fresh summary)", ch.MessageCountAtSummary, ch.Summary)
	}

	for i := 10; i <= 17; i++ {
		push(i)
	}
	if ai.calls != 1 {
		t.Fatalf("no refresh below the next cadence, got %d calls", ai.calls)
	}

	push(18)
	if ai.calls != 2 {
		t.Fatalf("eighteenth message must trigger the second refresh, got %d", ai.calls)
	}
	if err := db.First(&ch, "id = ?", "c1").Error; err != nil {
		t.Fatalf("reload chat: %v", err)
	}
	if ch.MessageCountAtSummary != 18 {
		t.Fatalf("watermark = %d; want 18", ch.MessageCountAtSummary)
	}
	// The second refresh folds in only the tail since the watermark.
	if len(ai.gotMessages) != 9 {
		t.Fatalf("second refresh tail = %d messages; want 9", len(ai.gotMessages))
	}
}

// ---------- ListPage() ----------

func TestMessageService_ListPage_ChatNotFound(t *testing.T) {
	db := newMsgDB(t, &domain.Chat{}, &domain.Message{})
	s := newMessageService(db, nil)

	if _, _, err := s.ListPage(context.Background(), "u1", "nope", 1, 10); err != ErrChatNotFound {
		t.Fatalf("expected ErrChatNotFound, got %v", err)
	}

	if err := db.Create(&domain.Chat{ID: "c1", UserID: "bob", Title: "t"}).Error; err != nil {
		t.Fatalf("seed chat: %v", err)
	}
	if _, _, err := s.ListPage(context.Background(), "alice", "c1", 1, 10); err != ErrChatNotFound {
		t.Fatalf("expected ErrChatNotFound for a foreign chat, got %v", err)
	}
}

func TestMessageService_ListPage_TotalZero_And_Success(t *testing.T) {
	db := newMsgDB(t, &domain.Chat{}, &domain.Message{})
	if err := db.Create(&domain.Chat{ID: "c2", UserID: "u1", Title: "t"}).Error; err != nil {
		t.Fatalf("seed chat: %v", err)
	}

	s := newMessageService(db, nil)

	// total==0 branch
	items, total, err := s.ListPage(context.Background(), "u1", "c2", 0, 0) // defaults page=1,size=20
	if err != nil {
		t.Fatalf("ListPage error: %v", err)
	}
	if total != 0 || len(items) != 0 {
		t.Fatalf("expected empty, got total=%d len=%d", total, len(items))
	}

	// Add 3 messages and test success + pagination
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	msgs := []domain.Message{
		{ID: "m1", ChatID: "c2", Role: domain.RoleUser, Content: "hi", CreatedAt: now},
		{ID: "m2", ChatID: "c2", Role: domain.RoleAssistant, Content: "hey", CreatedAt: now.Add(time.Second)},
		{ID: "m3", ChatID: "c2", Role: domain.RoleUser, Content: "ok", CreatedAt: now.Add(2 * time.Second)},
	}
	for _, m := range msgs {
		if err := db.Create(&m).Error; err != nil {
			t.Fatalf("seed msg: %v", err)
		}
	}

	pageItems, total2, err := s.ListPage(context.Background(), "u1", "c2", 1, 2)
	if err != nil {
		t.Fatalf("ListPage success error: %v", err)
	}
	if total2 != 3 || len(pageItems) != 2 {
		t.Fatalf("expected total=3 and 2 items, got total=%d len=%d", total2, len(pageItems))
	}
	if pageItems[0].Content != "hi" || pageItems[1].Content != "hey" {
		t.Fatalf("page must be oldest first: %q, %q", pageItems[0].Content, pageItems[1].Content)
	}

	lastPage, _, err := s.ListPage(context.Background(), "u1", "c2", 2, 2)
	if err != nil {
		t.Fatalf("ListPage last page error: %v", err)
	}
	if len(lastPage) != 1 || lastPage[0].Content != "ok" {
		t.Fatalf("unexpected last page: %+v", lastPage)
	}
}

// ---------- Get() ----------

func TestMessageService_Get(t *testing.T) {
	db := newMsgDB(t, &domain.Chat{}, &domain.Message{})
	if err := db.Create(&domain.Chat{ID: "c1", UserID: "u1", Title: "t"}).Error; err != nil {
		t.Fatalf("seed chat: %v", err)
	}
	if err := db.Create(&domain.Message{ID: "m1", ChatID: "c1", Role: domain.RoleUser, Content: "hi", CreatedAt: time.Now().UTC()}).Error; err != nil {
		t.Fatalf("seed msg: %v", err)
	}

	s := newMessageService(db, nil)

	got, err := s.Get(context.Background(), "u1", "m1")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.Content != "hi" {
		t.Fatalf("got %+v", got)
	}

	if _, err := s.Get(context.Background(), "u1", "m-missing"); err != ErrMessageNotFound {
		t.Fatalf("expected ErrMessageNotFound, got %v", err)
	}
	if _, err := s.Get(context.Background(), "mallory", "m1"); err != ErrMessageNotFound {
		t.Fatalf("foreign chat's message must read as not found, got %v", err)
	}
}

// ---------- title helpers ----------

func TestTitleHelpers(t *testing.T) {
	s := &MessageService{}

	// shouldAutoTitle
	if !shouldAutoTitle("") || !shouldAutoTitle("  new chat  ") || !shouldAutoTitle("Untitled") {
		t.Fatalf("shouldAutoTitle failed for placeholders")
	}
	if shouldAutoTitle("My Chat") {
		t.Fatalf("shouldAutoTitle true for custom title")
	}

	// generateTitleFromContent
	title := s.generateTitleFromContent("the state of concrete in nashville 2025 and beyond")
	if title == "" || strings.Contains(strings.ToLower(title), "the") {
		t.Fatalf("generateTitleFromContent should drop stop words, got %q", title)
	}
	if !strings.Contains(title, "Nashville") {
		t.Fatalf("expected cased token in %q", title)
	}

	// letters with trailing digits stay one token
	if got := s.generateTitleFromContent("update lot2025 schedule"); got != "Update Lot2025 Schedule" {
		t.Fatalf("trailing-digit token mangled: %q", got)
	}

	// clipTitle with runes
	s.TitleMaxLen = 5
	if got := s.clipTitle("☃☃☃☃☃☃"); utf8.RuneCountInString(got) != 5 {
		t.Fatalf("clipTitle expected 5 runes, got %d (%q)", utf8.RuneCountInString(got), got)
	}
	s.TitleMaxLen = 0
	if got := s.clipTitle("short"); got != "short" {
		t.Fatalf("clipTitle passthrough failed")
	}

	// locale
	if s.titleLocaleOrDefault() != language.English {
		t.Fatalf("default locale should be English")
	}
	s.TitleLocale = language.Greek
	if s.titleLocaleOrDefault() != language.Greek {
		t.Fatalf("custom locale not respected")
	}
}

func TestGenerateTitleFromContent_EmptyAndNoTokens(t *testing.T) {
	s := &MessageService{}

	if got := s.generateTitleFromContent("   "); got != "" {
		t.Fatalf("expected empty title for whitespace content, got %q", got)
	}
	if got := s.generateTitleFromContent("!!! --- ###"); got != "" {
		t.Fatalf("expected empty title for no-token content, got %q", got)
	}
	if got := s.generateTitleFromContent("the and of to in"); got != "" {
		t.Fatalf("expected empty title when all words are stopwords, got %q", got)
	}
}

func TestGenerateTitleFromContent_CapsAtEightWords(t *testing.T) {
	s := &MessageService{}
	got := s.generateTitleFromContent("alpha bravo charlie delta echo foxtrot golf hotel india juliett")
	if words := strings.Fields(got); len(words) != 8 {
		t.Fatalf("title must cap at 8 words, got %d (%q)", len(words), got)
	}
}
