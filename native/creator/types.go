package creator

import (
	"fmt"
	"strings"

	"patreonix/crypto"
)

// ContentType classifies a content record.
type ContentType uint8

const (
	ContentTypeText ContentType = iota
	ContentTypeImage
	ContentTypeVideo
	ContentTypeAudio
)

var contentTypeNames = [...]string{"text", "image", "video", "audio"}

// Valid reports whether t is one of the known content types.
func (t ContentType) Valid() bool {
	return int(t) < len(contentTypeNames)
}

func (t ContentType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
	return contentTypeNames[t]
}

// ParseContentType accepts the lowercase names produced by String.
func ParseContentType(s string) (ContentType, error) {
	trimmed := strings.ToLower(strings.TrimSpace(s))
	for i, name := range contentTypeNames {
		if name == trimmed {
			return ContentType(i), nil
		}
	}
	return 0, ErrInvalidContentType
}

func (t ContentType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, ErrInvalidContentType
	}
	return []byte(t.String()), nil
}

func (t *ContentType) UnmarshalText(text []byte) error {
	parsed, err := ParseContentType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Creator is the registration record of one identity.
type Creator struct {
	Authority       crypto.Address
	Name            string
	Email           *string
	Bio             *string
	Avatar          *string
	RegisteredAt    int64
	IsActive        bool
	TotalSupporters uint64
	TotalContent    uint64
}

// Comment is embedded in a Content record. Commenter is the identity that
// wrote the comment, not the owner of the content.
type Comment struct {
	Commenter crypto.Address `json:"creator"`
	Content   string         `json:"content"`
	CreatedAt int64          `json:"createdAt"`
	IsEdited  bool           `json:"isEdited"`
}

// Content is one published item owned by a creator record.
type Content struct {
	Creator      crypto.Address
	Title        string
	Description  string
	Body         string
	ContentType  ContentType
	CreatedAt    int64
	UpdatedAt    *int64
	TotalViews   uint64
	TotalLikes   uint64
	Comments     CommentLog
	ContentIndex uint64
	IsActive     bool
	Bump         uint8
}

// ProgramState is the registry-wide singleton.
type ProgramState struct {
	Authority     crypto.Address `json:"authority"`
	TotalCreators uint64         `json:"totalCreators"`
	TotalContent  uint64         `json:"totalContent"`
	Bump          uint8          `json:"bump"`
}

// CreatorInfo is the read projection of a Creator.
type CreatorInfo struct {
	Address         crypto.Address `json:"address"`
	Authority       crypto.Address `json:"authority"`
	Name            string         `json:"name"`
	Email           *string        `json:"email,omitempty"`
	Bio             *string        `json:"bio,omitempty"`
	Avatar          *string        `json:"avatar,omitempty"`
	RegisteredAt    int64          `json:"registeredAt"`
	IsActive        bool           `json:"isActive"`
	TotalSupporters uint64         `json:"totalSupporters"`
	TotalContent    uint64         `json:"totalContent"`
}

// ContentDetails is the read projection of a Content record. The derivation
// bump is not exposed.
type ContentDetails struct {
	Address      crypto.Address `json:"address"`
	Creator      crypto.Address `json:"creator"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Content      string         `json:"content"`
	ContentType  ContentType    `json:"contentType"`
	CreatedAt    int64          `json:"createdAt"`
	UpdatedAt    *int64         `json:"updatedAt,omitempty"`
	TotalViews   uint64         `json:"totalViews"`
	TotalLikes   uint64         `json:"totalLikes"`
	Comments     []Comment      `json:"comments"`
	ContentIndex uint64         `json:"contentIndex"`
	IsActive     bool           `json:"isActive"`
}

// ContentPage is one window of ListContent.
type ContentPage struct {
	Items      []*ContentDetails `json:"items"`
	NextOffset uint64            `json:"nextOffset"`
	Total      uint64            `json:"total"`
}

// CreatorUpdate carries optional deltas. Nil fields keep their stored value.
type CreatorUpdate struct {
	Name   *string `json:"name,omitempty"`
	Email  *string `json:"email,omitempty"`
	Bio    *string `json:"bio,omitempty"`
	Avatar *string `json:"avatar,omitempty"`
}

// ContentInput is the payload of CreateContent.
type ContentInput struct {
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	Content      string      `json:"content"`
	ContentType  ContentType `json:"contentType"`
	ContentIndex uint64      `json:"contentIndex"`
}

// ContentLocator names a content record for reads. Address and Bump are
// optional claims that must match what derivation produces.
type ContentLocator struct {
	Creator crypto.Address
	Index   uint64
	Address *crypto.Address
	Bump    *uint8
}

func (c *Creator) info(addr crypto.Address) *CreatorInfo {
	return &CreatorInfo{
		Address:         addr,
		Authority:       c.Authority,
		Name:            c.Name,
		Email:           cloneString(c.Email),
		Bio:             cloneString(c.Bio),
		Avatar:          cloneString(c.Avatar),
		RegisteredAt:    c.RegisteredAt,
		IsActive:        c.IsActive,
		TotalSupporters: c.TotalSupporters,
		TotalContent:    c.TotalContent,
	}
}

func (c *Content) details(addr crypto.Address) *ContentDetails {
	var updated *int64
	if c.UpdatedAt != nil {
		v := *c.UpdatedAt
		updated = &v
	}
	return &ContentDetails{
		Address:      addr,
		Creator:      c.Creator,
		Title:        c.Title,
		Description:  c.Description,
		Content:      c.Body,
		ContentType:  c.ContentType,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    updated,
		TotalViews:   c.TotalViews,
		TotalLikes:   c.TotalLikes,
		Comments:     c.Comments.Items(),
		ContentIndex: c.ContentIndex,
		IsActive:     c.IsActive,
	}
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// DecodeCreatorInfo decodes raw account data stored at addr.
func DecodeCreatorInfo(addr crypto.Address, data []byte) (*CreatorInfo, error) {
	var c Creator
	if err := c.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return c.info(addr), nil
}

// DecodeContentDetails decodes raw account data stored at addr.
func DecodeContentDetails(addr crypto.Address, data []byte) (*ContentDetails, error) {
	var c Content
	if err := c.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return c.details(addr), nil
}
