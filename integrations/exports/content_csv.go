package exports

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"strconv"
	"time"

	"patreonix/native/creator"
)

var contentHeader = []string{"address", "creator", "content_index", "title", "content_type", "created_at", "updated_at", "comments", "is_active"}

// ContentCSV builds a CSV export of content headers and returns the
// serialised data alongside a SHA-256 checksum of the payload. Bodies and
// comment text are not exported.
func ContentCSV(entries []*creator.ContentDetails) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	writer := csv.NewWriter(buffer)
	if err := writer.Write(contentHeader); err != nil {
		return nil, "", err
	}
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		if err := writer.Write(contentRecord(entry)); err != nil {
			return nil, "", err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, "", err
	}
	return checksummed(buffer.Bytes())
}

func contentRecord(entry *creator.ContentDetails) []string {
	updated := ""
	if entry.UpdatedAt != nil {
		updated = formatUnix(*entry.UpdatedAt)
	}
	return []string{
		entry.Address.String(),
		entry.Creator.String(),
		strconv.FormatUint(entry.ContentIndex, 10),
		entry.Title,
		entry.ContentType.String(),
		formatUnix(entry.CreatedAt),
		updated,
		strconv.Itoa(len(entry.Comments)),
		strconv.FormatBool(entry.IsActive),
	}
}

var creatorHeader = []string{"address", "authority", "name", "registered_at", "is_active", "total_supporters", "total_content"}

// CreatorsCSV exports the public header of every creator. Contact details
// are never written.
func CreatorsCSV(entries []*creator.CreatorInfo) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	writer := csv.NewWriter(buffer)
	if err := writer.Write(creatorHeader); err != nil {
		return nil, "", err
	}
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		record := []string{
			entry.Address.String(),
			entry.Authority.String(),
			entry.Name,
			formatUnix(entry.RegisteredAt),
			strconv.FormatBool(entry.IsActive),
			strconv.FormatUint(entry.TotalSupporters, 10),
			strconv.FormatUint(entry.TotalContent, 10),
		}
		if err := writer.Write(record); err != nil {
			return nil, "", err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, "", err
	}
	return checksummed(buffer.Bytes())
}

func formatUnix(ts int64) string {
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}

func checksummed(data []byte) ([]byte, string, error) {
	checksum := sha256.Sum256(data)
	return data, hex.EncodeToString(checksum[:]), nil
}
