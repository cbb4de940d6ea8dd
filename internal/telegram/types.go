package telegram

type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

type Message struct {
	MessageID int64    `json:"message_id"`
	Date      int64    `json:"date,omitempty"`
	Chat      *Chat    `json:"chat,omitempty"`
	From      *User    `json:"from,omitempty"`
	Entities  []Entity `json:"entities,omitempty"`
	Text      string   `json:"text,omitempty"`
}

type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type,omitempty"` // private|group|supergroup|channel
}

type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot,omitempty"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// Entity offsets and lengths are in UTF-16 code units.
type Entity struct {
	Type   string `json:"type"`
	Offset int    `json:"offset"`
	Length int    `json:"length"`
	User   *User  `json:"user,omitempty"` // text_mention only
}

const (
	EntityMention     = "mention"
	EntityTextMention = "text_mention"
	EntityBotCommand  = "bot_command"
)

// AdminRights is the right set passed to promoteChatMember. Every field is
// sent explicitly; the Bot API treats an all-false promotion as a demotion.
type AdminRights struct {
	CanChangeInfo      bool `json:"can_change_info"`
	CanDeleteMessages  bool `json:"can_delete_messages"`
	CanInviteUsers     bool `json:"can_invite_users"`
	CanRestrictMembers bool `json:"can_restrict_members"`
	CanPinMessages     bool `json:"can_pin_messages"`
	CanPromoteMembers  bool `json:"can_promote_members"`
}

// SendOptions controls how a message is delivered.
type SendOptions struct {
	ParseMode           string
	ReplyToMessageID    int64
	DisableNotification bool
}

const ParseModeMarkdownV2 = "MarkdownV2"
