package relay

import "time"

// RelayedMessage archives every message that crossed the bridge, in
// either direction, for agent auditing.
type RelayedMessage struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	SessionID string    `gorm:"type:varchar(26);index;not null" json:"session_id"`
	PageID    string    `gorm:"type:varchar(64);index" json:"page_id"`
	PSID      string    `gorm:"type:varchar(64);index" json:"psid"`
	Direction string    `gorm:"type:varchar(16);not null" json:"direction"` // "inbound" | "outbound"
	Text      string    `gorm:"type:text;not null" json:"text"`
	MessageID string    `gorm:"type:varchar(128);uniqueIndex" json:"message_id"`
	CreatedAt time.Time `json:"created_at"`
}

func (RelayedMessage) TableName() string { return "relayed_messages" }

// TicketRecord remembers which escalations raised which tickets.
type TicketRecord struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	TicketID  int64     `gorm:"index;not null" json:"ticket_id"`
	SessionID string    `gorm:"type:varchar(26);index;not null" json:"session_id"`
	UserEmail string    `gorm:"type:varchar(255)" json:"user_email"`
	UserName  string    `gorm:"type:varchar(255)" json:"user_name"`
	CreatedAt time.Time `json:"created_at"`
}

func (TicketRecord) TableName() string { return "ticket_records" }

// Page holds the access token for each connected Facebook page.
type Page struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	PageID      string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"page_id"`
	Name        string    `gorm:"type:varchar(255)" json:"name"`
	AccessToken string    `gorm:"type:text;not null" json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Page) TableName() string { return "pages" }
