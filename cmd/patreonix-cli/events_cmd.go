package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"strings"

	"nhooyr.io/websocket"
)

func runEvents(args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet("events", stderr)
	cursor := fs.String("cursor", "", "replay buffered events after this sequence number")
	typePrefix := fs.String("type", "", "only show event types with this prefix")
	limit := fs.Int("limit", 0, "exit after this many events")
	if !parseFlags(fs, args, stderr) {
		return 1
	}
	target, err := eventsURL(rpcEndpoint, *cursor, *typePrefix)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := streamEvents(ctx, target, *limit, stdout); err != nil && ctx.Err() == nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// eventsURL maps the JSON-RPC endpoint onto its websocket event stream.
func eventsURL(endpoint, cursor, typePrefix string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported RPC scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/events"
	q := url.Values{}
	if c := strings.TrimSpace(cursor); c != "" {
		q.Set("cursor", c)
	}
	if p := strings.TrimSpace(typePrefix); p != "" {
		q.Set("type", p)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func streamEvents(ctx context.Context, target string, limit int, stdout io.Writer) error {
	conn, _, err := websocket.Dial(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("connect %s: %w", target, err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	seen := 0
	for limit <= 0 || seen < limit {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return err
		}
		fmt.Fprintln(stdout, string(data))
		seen++
	}
	return nil
}
