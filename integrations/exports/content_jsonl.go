package exports

import (
	"bytes"
	"encoding/json"

	"patreonix/native/creator"
)

type contentLine struct {
	Address      string `json:"address"`
	Creator      string `json:"creator"`
	ContentIndex uint64 `json:"contentIndex"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	ContentType  string `json:"contentType"`
	CreatedAt    int64  `json:"createdAt"`
	UpdatedAt    *int64 `json:"updatedAt,omitempty"`
	Comments     int    `json:"comments"`
	IsActive     bool   `json:"isActive"`
}

// ContentJSONL builds a JSON Lines export of content headers and returns the
// serialised payload alongside a checksum.
func ContentJSONL(entries []*creator.ContentDetails) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		line := contentLine{
			Address:      entry.Address.String(),
			Creator:      entry.Creator.String(),
			ContentIndex: entry.ContentIndex,
			Title:        entry.Title,
			Description:  entry.Description,
			ContentType:  entry.ContentType.String(),
			CreatedAt:    entry.CreatedAt,
			UpdatedAt:    entry.UpdatedAt,
			Comments:     len(entry.Comments),
			IsActive:     entry.IsActive,
		}
		if err := encoder.Encode(line); err != nil {
			return nil, "", err
		}
	}
	return checksummed(buffer.Bytes())
}
