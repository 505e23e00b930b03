// Package entity holds the uniform in-memory data model that every loader
// converges on: Dataset, User, Chat, Message and the tagged variants
// hanging off a Message (Typed, ServiceKind, Content, rich text runs).
// Types here are plain structs; tagged variants are modelled as a small
// interface with an unexported marker method, one concrete struct per
// variant, matching the discriminated-union idiom the rest of this
// codebase uses for its filter AST and notification job states.
package entity

// MyselfID is the reserved user id that denotes the account owner.
const MyselfID int64 = 1

// SourceType names the originating export format of a Dataset or Chat.
type SourceType string

const (
	SourceTelegram SourceType = "telegram"
	SourceMRA      SourceType = "mra"
)

// Dataset is one per loaded source root or MRA account sub-directory.
// Immutable once loading begins.
type Dataset struct {
	UUID       string
	Alias      string
	SourceType SourceType
}

// User is a participant known to a Dataset. A zero Id marks an id-less
// contact pending merge by the user registry; after loading every
// surviving user must have Id > 0.
type User struct {
	DatasetUUID string
	ID          int64
	FirstName   string
	LastName    string
	Username    string
	Phone       string
}

// ChatType distinguishes a one-on-one conversation from a group.
type ChatType string

const (
	ChatPersonal     ChatType = "personal"
	ChatPrivateGroup ChatType = "private_group"
)

// Chat is a conversation: a set of members exchanging Messages.
type Chat struct {
	DatasetUUID string
	ID          int64
	Name        string
	SourceType  SourceType
	Type        ChatType
	ImgPath     string
	// MemberIDs is ordered: MyselfID first when known, otherwise sorted
	// ascending by user id. No duplicates.
	MemberIDs []int64
	MsgCount  int
	// MainChatID links a channel/supergroup to its pre-migration chat,
	// when that relationship is known. Zero means none.
	MainChatID int64
}

// Message is one entry in a Chat's timeline.
type Message struct {
	// InternalID is dense per-chat, assigned 0..N at the end of a load.
	InternalID int64
	// SourceID is the id carried by the original export, if any (0 when
	// the source format has none, e.g. reconstructed MRA calls).
	SourceID int64
	// Timestamp is unix seconds.
	Timestamp int64
	FromID    int64
	Text      []RichTextRun
	// SearchableString is a plain-text projection of Text plus any
	// content caption, used by downstream search indexing; empty when
	// a loader chooses not to populate it.
	SearchableString string
	Typed            Typed
}

// Typed is the Message.typed tagged variant: either a Regular message or
// a Service notice.
type Typed interface {
	isTyped()
}

// Regular is a normal user-authored message, possibly carrying media.
type Regular struct {
	EditTimestamp    int64 // 0 means never edited
	IsDeleted        bool
	ForwardFromName  string // empty means not forwarded
	ReplyToMessageID int64  // 0 means not a reply
	HasReplyTo       bool
	Content          Content // nil means no attached content
}

func (Regular) isTyped() {}

// Service wraps a non-message event (call, pin, membership change, ...).
type Service struct {
	Kind ServiceKind
}

func (Service) isTyped() {}

// ServiceKind is the Service.sealed_value_optional tagged variant.
type ServiceKind interface {
	isServiceKind()
}

type ServicePhoneCall struct {
	DurationSec   int64 // 0 when unknown/not applicable
	DiscardReason string
	Members       []int64
}

type ServicePinMessage struct{ MessageID int64 }
type ServiceSuggestProfilePhoto struct{ PhotoPath string }
type ServiceClearHistory struct{}
type ServiceGroupCreate struct {
	Title   string
	Members []int64
}
type ServiceGroupEditPhoto struct{ PhotoPath string }
type ServiceGroupDeletePhoto struct{}
type ServiceGroupEditTitle struct{ Title string }
type ServiceGroupInviteMembers struct{ Members []int64 }
type ServiceGroupRemoveMembers struct{ Members []int64 }
type ServiceGroupMigrateFrom struct{ Title string }
type ServiceGroupMigrateTo struct{}
type ServiceGroupCall struct{ Members []int64 }
type ServiceNotice struct{ Text string }

func (ServicePhoneCall) isServiceKind()           {}
func (ServicePinMessage) isServiceKind()          {}
func (ServiceSuggestProfilePhoto) isServiceKind() {}
func (ServiceClearHistory) isServiceKind()        {}
func (ServiceGroupCreate) isServiceKind()         {}
func (ServiceGroupEditPhoto) isServiceKind()      {}
func (ServiceGroupDeletePhoto) isServiceKind()    {}
func (ServiceGroupEditTitle) isServiceKind()      {}
func (ServiceGroupInviteMembers) isServiceKind()  {}
func (ServiceGroupRemoveMembers) isServiceKind()  {}
func (ServiceGroupMigrateFrom) isServiceKind()    {}
func (ServiceGroupMigrateTo) isServiceKind()      {}
func (ServiceGroupCall) isServiceKind()           {}
func (ServiceNotice) isServiceKind()              {}

// Content is the Regular.content tagged variant.
type Content interface {
	isContent()
}

type ContentSticker struct {
	Path      string
	Width     int
	Height    int
	EmojiText string
}
type ContentAnimation struct {
	Path          string
	Width, Height int
	DurationSec   int
	Thumbnail     string
	MimeType      string
}
type ContentPhoto struct {
	Path          string
	Width, Height int
}
type ContentVideoMsg struct {
	Path          string
	Width, Height int
	DurationSec   int
	Thumbnail     string
	MimeType      string
}
type ContentVoiceMsg struct {
	Path        string
	DurationSec int
	MimeType    string
}
type ContentFile struct {
	Path        string
	MimeType    string
	Title       string
	Performer   string
	Width       int
	Height      int
	DurationSec int
	Thumbnail   string
}
type ContentLocation struct {
	Lat, Lon   string
	PlaceName  string
	Address    string
	LivePeriod int
}
type ContentPoll struct {
	Question string
}
type ContentSharedContact struct {
	FirstName, LastName, PhoneNumber, Vcard string
}

func (ContentSticker) isContent()       {}
func (ContentAnimation) isContent()     {}
func (ContentPhoto) isContent()         {}
func (ContentVideoMsg) isContent()      {}
func (ContentVoiceMsg) isContent()      {}
func (ContentFile) isContent()          {}
func (ContentLocation) isContent()      {}
func (ContentPoll) isContent()          {}
func (ContentSharedContact) isContent() {}

// RichTextRun is a styled substring of a message.
type RichTextRun interface {
	isRichTextRun()
}

type RunPlain struct{ Text string }
type RunBold struct{ Text string }
type RunItalic struct{ Text string }
type RunUnderline struct{ Text string }
type RunStrikethrough struct{ Text string }
type RunSpoiler struct{ Text string }
type RunPrefmtInline struct{ Text string }
type RunPrefmtBlock struct {
	Text string
	Lang string // empty means unspecified
}
type RunLink struct {
	Text   string // empty means display href itself
	Href   string
	Hidden bool
}

func (RunPlain) isRichTextRun()         {}
func (RunBold) isRichTextRun()          {}
func (RunItalic) isRichTextRun()        {}
func (RunUnderline) isRichTextRun()     {}
func (RunStrikethrough) isRichTextRun() {}
func (RunSpoiler) isRichTextRun()       {}
func (RunPrefmtInline) isRichTextRun()  {}
func (RunPrefmtBlock) isRichTextRun()   {}
func (RunLink) isRichTextRun()          {}

// ChatWithMessages pairs a Chat with its fully sorted Message slice, the
// unit the C7 loader contract hands back per conversation.
type ChatWithMessages struct {
	Chat     Chat
	Messages []Message
}

// LoadResult is what every loader pipeline converges on:
// load(root) -> Dataset + Users + ChatsWithMessages.
type LoadResult struct {
	Dataset Dataset
	Users   []User
	Chats   []ChatWithMessages
}
