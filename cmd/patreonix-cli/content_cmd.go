package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"patreonix/native/creator"
)

func runContentCommand(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, contentUsage())
		return 1
	}
	switch args[0] {
	case "create":
		return runContentCreate(args[1:], stdout, stderr)
	case "get":
		return runContentGet(args[1:], stdout, stderr)
	case "list":
		return runContentList(args[1:], stdout, stderr)
	case "comment":
		return runContentComment(args[1:], stdout, stderr)
	case "search":
		return runContentSearch(args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown content subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, contentUsage())
		return 1
	}
}

func runContentCreate(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("content create", stderr)
	keyPath := fs.String("key", "", "keystore of the creator authority")
	creatorAddr := fs.String("creator", "", "creator record address")
	title := fs.String("title", "", "content title")
	description := fs.String("description", "", "content description")
	body := fs.String("body", "", "content body")
	bodyFile := fs.String("body-file", "", "read the content body from a file")
	kind := fs.String("type", "text", "content type: text, image, video or audio")
	index := fs.Uint64("index", 0, "content index (defaults to the creator's next index)")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	addr, ok := requireFlag(stderr, "creator", *creatorAddr)
	if !ok {
		return 1
	}
	trimmedTitle, ok := requireFlag(stderr, "title", *title)
	if !ok {
		return 1
	}
	contentType, err := creator.ParseContentType(*kind)
	if err != nil {
		fmt.Fprintf(stderr, "Error: unknown content type %q\n", *kind)
		return 1
	}
	text := *body
	if path := strings.TrimSpace(*bodyFile); path != "" {
		if flagProvided(fs, "body") {
			fmt.Fprintln(stderr, "Error: --body and --body-file are mutually exclusive")
			return 1
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		text = string(raw)
	}
	key, ok := signerFrom(stderr, *keyPath)
	if !ok {
		return 1
	}

	contentIndex := *index
	if !flagProvided(fs, "index") {
		next, err := nextContentIndex(addr)
		if err != nil {
			return handleCallError(stderr, err)
		}
		contentIndex = next
	}

	payload := map[string]interface{}{
		"creator":      addr,
		"title":        trimmedTitle,
		"description":  *description,
		"content":      text,
		"contentType":  contentType.String(),
		"contentIndex": contentIndex,
	}
	return invoke(stdout, stderr, "registry_createContent", key, payload, false)
}

// nextContentIndex reads the creator's content counter, which is the only
// index the registry accepts for the next record.
func nextContentIndex(creatorAddr string) (uint64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	raw, err := registryRPCCall(ctx, "registry_getCreatorPublic", nil, map[string]interface{}{"creator": creatorAddr}, false)
	if err != nil {
		return 0, err
	}
	var info struct {
		TotalContent uint64 `json:"totalContent"`
	}
	if err := json.Unmarshal(raw, &info); err != nil {
		return 0, fmt.Errorf("decode creator: %w", err)
	}
	return info.TotalContent, nil
}

func runContentGet(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("content get", stderr)
	creatorAddr := fs.String("creator", "", "creator record address")
	index := fs.Uint64("index", 0, "content index")
	address := fs.String("address", "", "content record address (checked against --creator/--index when both are given)")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	payload := map[string]interface{}{}
	if trimmed := strings.TrimSpace(*address); trimmed != "" {
		payload["address"] = trimmed
	}
	if trimmed := strings.TrimSpace(*creatorAddr); trimmed != "" {
		payload["creator"] = trimmed
		payload["index"] = *index
	} else if _, ok := payload["address"]; !ok {
		fmt.Fprintln(stderr, "Error: --creator or --address is required")
		return 1
	}
	return invoke(stdout, stderr, "registry_getContent", nil, payload, false)
}

func runContentList(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("content list", stderr)
	creatorAddr := fs.String("creator", "", "creator record address")
	offset := fs.Uint64("offset", 0, "first content index")
	limit := fs.Uint("limit", 20, "page size")
	kind := fs.String("type", "", "only list this content type")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	addr, ok := requireFlag(stderr, "creator", *creatorAddr)
	if !ok {
		return 1
	}
	payload := map[string]interface{}{"creator": addr, "offset": *offset, "limit": *limit}
	if trimmed := strings.TrimSpace(*kind); trimmed != "" {
		contentType, err := creator.ParseContentType(trimmed)
		if err != nil {
			fmt.Fprintf(stderr, "Error: unknown content type %q\n", trimmed)
			return 1
		}
		payload["contentType"] = contentType.String()
	}
	return invoke(stdout, stderr, "registry_listContent", nil, payload, false)
}

func runContentComment(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("content comment", stderr)
	keyPath := fs.String("key", "", "keystore of the commenter")
	contentAddr := fs.String("content", "", "content record address")
	text := fs.String("text", "", "comment text")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	addr, ok := requireFlag(stderr, "content", *contentAddr)
	if !ok {
		return 1
	}
	if _, ok := requireFlag(stderr, "text", *text); !ok {
		return 1
	}
	key, ok := signerFrom(stderr, *keyPath)
	if !ok {
		return 1
	}
	return invoke(stdout, stderr, "registry_insertComment", key, map[string]interface{}{"content": addr, "text": *text}, false)
}

func runContentSearch(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("content search", stderr)
	query := fs.String("query", "", "text to find in content titles")
	limit := fs.Int("limit", 0, "maximum number of hits")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	q, ok := requireFlag(stderr, "query", *query)
	if !ok {
		return 1
	}
	payload := map[string]interface{}{"query": q}
	if *limit > 0 {
		payload["limit"] = *limit
	}
	return invoke(stdout, stderr, "indexer_searchContent", nil, payload, false)
}

func contentUsage() string {
	return `Usage: patreonix-cli content <subcommand> [flags]
  create   --key FILE --creator ADDR --title T [--description D] [--body B | --body-file F] [--type text] [--index N]
  get      --creator ADDR --index N | --address ADDR
  list     --creator ADDR [--offset N] [--limit N] [--type T]
  comment  --key FILE --content ADDR --text T
  search   --query Q [--limit N]`
}
