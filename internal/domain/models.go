// Package domain defines the persistence models for projects, shares, chats,
// messages, and user profiles, plus the closed status enumerations used by
// the orchestration state machines. These types are mapped with GORM and are
// shared across the repository and service layers.
package domain

import (
	"encoding/json"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Project represents a construction project owned by a user. The address
// fields double as the matching location for vendor quotes, and the indexing
// fields mirror the state of the project's content-indexing job on the
// external AI backend.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - OwnerID / OwnerEmail: identity of the project owner; indexed.
//   - Name: human-readable project name.
//   - Street..PostalCode: project address; Region/Country drive vendor matching.
//   - SquareFeet: project size used for benchmarks and quote generation.
//   - IndexingStatus: closed enumeration, see status.go (DB check constraint).
//   - IndexingError: set iff IndexingStatus = failed.
//   - AIProjectID: external backend namespace; assigned once on the first
//     successful index start and stable across re-indexing.
//   - IndexedThreads/Messages/PDFs, IndexCompletedAt: terminal job stats.
//   - DeletedAt: soft deletion marker (retains row for audit/history).
type Project struct {
	ID         string `json:"id"          gorm:"type:char(36);primaryKey"`
	OwnerID    string `json:"owner_id"    gorm:"type:varchar(64);not null;index:idx_owner_projects"`
	OwnerEmail string `json:"owner_email" gorm:"type:varchar(255);not null;index"`
	Name       string `json:"name"        gorm:"type:varchar(255);not null"`

	Street     string  `json:"street"      gorm:"type:varchar(255)"`
	City       string  `json:"city"        gorm:"type:varchar(128)"`
	Region     string  `json:"region"      gorm:"type:varchar(128)"`
	Country    string  `json:"country"     gorm:"type:varchar(2)"`
	PostalCode string  `json:"postal_code" gorm:"type:varchar(16)"`
	SquareFeet float64 `json:"square_feet" gorm:"not null;default:0"`

	IndexingStatus IndexingStatus `json:"indexing_status" gorm:"type:varchar(16);not null;default:'not_started';check:indexing_status IN ('not_started','indexing','completed','failed','cancelled')"`
	IndexingError  *string        `json:"indexing_error,omitempty" gorm:"type:text"`
	AIProjectID    string         `json:"ai_project_id,omitempty"  gorm:"column:ai_project_id;type:varchar(128);index"`

	IndexedThreads   int        `json:"indexed_threads"  gorm:"not null;default:0"`
	IndexedMessages  int        `json:"indexed_messages" gorm:"not null;default:0"`
	IndexedPDFs      int        `json:"indexed_pdfs"     gorm:"column:indexed_pdfs;not null;default:0"`
	IndexCompletedAt *time.Time `json:"index_completed_at,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for Project.
func (Project) TableName() string { return "projects" }

// ProjectShare grants another user (identified by email) read-only or
// read-write access to a project. One grant per (project, email) is enforced
// by a unique index; attempting a second grant is a conflict.
type ProjectShare struct {
	ID         string `json:"id"         gorm:"type:char(36);primaryKey"`
	ProjectID  string `json:"project_id" gorm:"type:char(36);not null;index;uniqueIndex:ux_shares_project_email"`
	Email      string `json:"email"      gorm:"type:varchar(255);not null;index;uniqueIndex:ux_shares_project_email"`
	Permission string `json:"permission" gorm:"type:varchar(8);not null;check:permission IN ('view','edit')"`
	CreatedBy  string `json:"created_by" gorm:"type:varchar(64);not null"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Project is the shared resource. Grants are cascade-deleted when the
	// project is removed.
	Project Project `json:"-" gorm:"foreignKey:ProjectID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ProjectShare.
func (ProjectShare) TableName() string { return "project_shares" }

// Chat represents a conversation owned by a user, optionally bound to a
// project (project-bound chats answer from that project's indexed content).
// The summary fields hold the periodically regenerated compressed history:
// Summary is advisory memory only, the message rows remain the source of
// truth, and MessageCountAtSummary records the count at the last
// regeneration so the refresh trigger can measure what is unsummarized.
type Chat struct {
	ID        string  `json:"id"         gorm:"type:char(36);primaryKey"`
	UserID    string  `json:"user_id"    gorm:"type:varchar(64);not null;index:idx_user_chats"`
	ProjectID *string `json:"project_id,omitempty" gorm:"type:char(36);index"`
	Title     string  `json:"title"      gorm:"type:varchar(255);not null;default:'New chat'"`

	Summary               string     `json:"summary,omitempty" gorm:"type:text"`
	SummaryUpdatedAt      *time.Time `json:"summary_updated_at,omitempty"`
	MessageCountAtSummary int        `json:"message_count_at_summary" gorm:"not null;default:0"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for Chat.
func (Chat) TableName() string { return "chats" }

// Message represents a single utterance within a chat. Messages are linked
// to a chat and authored by "user", "assistant", or "system". Assistant
// messages may carry source citations from retrieval.
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - ChatID: foreign key to the owning chat (indexed).
//   - Role: one of the closed role set (enforced by DB constraint).
//   - Content: full text content of the message.
//   - Sources: JSON-encoded []Source citation list (assistant messages only).
//   - Chat: FK association, ensures cascade delete/update.
type Message struct {
	ID        string         `json:"id"      gorm:"type:char(36);primaryKey"`
	ChatID    string         `json:"chat_id" gorm:"type:char(36);not null;index:idx_chat_msgs,priority:1"`
	Role      string         `json:"role"    gorm:"type:varchar(16);not null;check:role IN ('user','assistant','system')"`
	Content   string         `json:"content" gorm:"type:text;not null"`
	Sources   string         `json:"-"       gorm:"type:text"`
	CreatedAt time.Time      `json:"created_at" gorm:"index:idx_chat_msgs,priority:2"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Chat is the parent conversation. Messages are cascade-deleted
	// if their chat is removed.
	Chat Chat `json:"-" gorm:"foreignKey:ChatID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// Source is one retrieval citation attached to an assistant message,
// serialized as JSON into Message.Sources.
type Source struct {
	Content   string  `json:"content"`
	Score     float64 `json:"score"`
	Sender    string  `json:"sender,omitempty"`
	Subject   string  `json:"subject,omitempty"`
	Timestamp string  `json:"timestamp,omitempty"`
	Kind      string  `json:"kind,omitempty"` // "email" or "pdf"
}

// SourceList decodes the message's citation list. A missing or empty column
// yields an empty slice.
func (m *Message) SourceList() ([]Source, error) {
	if strings.TrimSpace(m.Sources) == "" {
		return []Source{}, nil
	}
	var out []Source
	if err := json.Unmarshal([]byte(m.Sources), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SetSourceList encodes the citation list into the Sources column.
// A nil or empty list clears the column.
func (m *Message) SetSourceList(srcs []Source) error {
	if len(srcs) == 0 {
		m.Sources = ""
		return nil
	}
	b, err := json.Marshal(srcs)
	if err != nil {
		return err
	}
	m.Sources = string(b)
	return nil
}

// UserInfo holds the mutable profile for a principal, keyed by the identity
// provider's principal id. The mailbox connection pairs gate index starts:
// indexing requires at least one connected provider, whose opaque credential
// is forwarded to the AI backend.
type UserInfo struct {
	ID          string `json:"id"           gorm:"type:varchar(64);primaryKey"`
	Email       string `json:"email"        gorm:"type:varchar(255);not null;index"`
	FullName    string `json:"full_name"    gorm:"type:varchar(255)"`
	CompanyName string `json:"company_name" gorm:"type:varchar(255)"`
	Phone       string `json:"phone"        gorm:"type:varchar(32)"`

	GmailConnected    bool   `json:"gmail_connected"   gorm:"not null;default:false"`
	GmailCredential   string `json:"-"                 gorm:"type:text"`
	OutlookConnected  bool   `json:"outlook_connected" gorm:"not null;default:false"`
	OutlookCredential string `json:"-"                 gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for UserInfo.
func (UserInfo) TableName() string { return "user_infos" }

// MailboxConnected reports whether any mail provider is connected, and
// returns the credential of the first connected one (gmail preferred).
func (u *UserInfo) MailboxConnected() (provider, credential string, ok bool) {
	if u.GmailConnected {
		return "gmail", u.GmailCredential, true
	}
	if u.OutlookConnected {
		return "outlook", u.OutlookCredential, true
	}
	return "", "", false
}
