package exports

import (
	"bytes"
	"strings"
	"testing"

	"patreonix/crypto"
	"patreonix/native/creator"
)

func sampleContent(index uint64) *creator.ContentDetails {
	var addr, owner crypto.Address
	addr[0] = byte(index + 1)
	owner[0] = 0xAA
	return &creator.ContentDetails{
		Address:      addr,
		Creator:      owner,
		Title:        "Episode, \"one\"",
		Description:  "<intro>",
		Content:      "secret body",
		ContentType:  creator.ContentTypeAudio,
		CreatedAt:    1_700_000_000,
		Comments:     []creator.Comment{{Content: "hi"}},
		ContentIndex: index,
		IsActive:     true,
	}
}

func TestContentCSV(t *testing.T) {
	data, checksum, err := ContentCSV([]*creator.ContentDetails{sampleContent(0), nil})
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	if len(data) == 0 || len(checksum) != 64 {
		t.Fatalf("expected data and checksum")
	}
	output := string(data)
	if !strings.HasPrefix(output, "address,creator,content_index,title,content_type,created_at,updated_at,comments,is_active\n") {
		t.Fatalf("missing header: %s", output)
	}
	if !strings.Contains(output, `"Episode, ""one"""`) {
		t.Fatalf("title not quoted: %s", output)
	}
	if !strings.Contains(output, "audio,2023-11-14T22:13:20Z,,1,true") {
		t.Fatalf("unexpected row: %s", output)
	}
	if strings.Contains(output, "secret body") {
		t.Fatalf("body must not be exported")
	}
}

func TestCreatorsCSVOmitsEmail(t *testing.T) {
	email := "alice@example.com"
	data, _, err := CreatorsCSV([]*creator.CreatorInfo{{Name: "Alice", Email: &email, IsActive: true, TotalSupporters: 3}})
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	if strings.Contains(string(data), email) {
		t.Fatalf("email leaked into export: %s", data)
	}
	if !strings.Contains(string(data), "Alice") {
		t.Fatalf("missing creator row: %s", data)
	}
}

func TestContentJSONL(t *testing.T) {
	data, checksum, err := ContentJSONL([]*creator.ContentDetails{sampleContent(0), sampleContent(1)})
	if err != nil {
		t.Fatalf("jsonl: %v", err)
	}
	if checksum == "" {
		t.Fatalf("expected checksum")
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[1], `"contentIndex":1`) {
		t.Fatalf("unexpected payload: %s", lines[1])
	}
	if !strings.Contains(lines[0], `"description":"<intro>"`) {
		t.Fatalf("html should not be escaped: %s", lines[0])
	}
}

func TestContentParquet(t *testing.T) {
	var buf bytes.Buffer
	if err := ContentParquet(&buf, []*creator.ContentDetails{sampleContent(0), sampleContent(1)}); err != nil {
		t.Fatalf("parquet: %v", err)
	}
	data := buf.Bytes()
	if len(data) < 8 {
		t.Fatalf("parquet output too short: %d bytes", len(data))
	}
	if string(data[:4]) != "PAR1" || string(data[len(data)-4:]) != "PAR1" {
		t.Fatalf("missing parquet magic")
	}
}
