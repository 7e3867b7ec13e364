package indexer

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"patreonix/crypto"
	"patreonix/native/creator"
)

func newTestIndexer(t *testing.T) *Indexer {
	t.Helper()
	db, err := Open("sqlite", filepath.Join(t.TempDir(), "indexer.db"))
	require.NoError(t, err)
	ix, err := New(db, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })
	return ix
}

func testAddr(b byte) crypto.Address {
	var addr crypto.Address
	addr[0] = b
	addr[31] = b
	return addr
}

func publish(ix *Indexer, creatorAddr crypto.Address, index uint64, title string, createdAt int64) crypto.Address {
	contentAddr := testAddr(byte(0x80 + index))
	ix.Emit(creator.WrapEvent(creator.ContentCreatedEvent(contentAddr, &creator.Content{
		Creator:      creatorAddr,
		Title:        title,
		ContentType:  creator.ContentTypeVideo,
		ContentIndex: index,
		CreatedAt:    createdAt,
	})))
	return contentAddr
}

func TestIndexerMirrorsCreatorLifecycle(t *testing.T) {
	ix := newTestIndexer(t)
	ctx := context.Background()
	addr := testAddr(1)
	c := &creator.Creator{Authority: testAddr(2), Name: "Alice", RegisteredAt: 100, IsActive: true}

	ix.Emit(creator.WrapEvent(creator.CreatorRegisteredEvent(addr, c)))
	row, err := ix.Creator(ctx, addr.String())
	require.NoError(t, err)
	require.Equal(t, "Alice", row.Name)
	require.True(t, row.IsActive)
	require.EqualValues(t, 100, row.RegisteredAt)

	c.Name = "Alice B"
	ix.Emit(creator.WrapEvent(creator.CreatorUpdatedEvent(addr, c, []string{"name"})))
	ix.Emit(creator.WrapEvent(creator.CreatorStatusEvent(addr, false)))
	ix.Emit(creator.WrapEvent(creator.SupportersIncrementedEvent(addr, 7)))
	publish(ix, addr, 0, "First", 200)

	row, err = ix.Creator(ctx, addr.String())
	require.NoError(t, err)
	require.Equal(t, "Alice B", row.Name)
	require.Equal(t, "alice b", row.NameFolded)
	require.False(t, row.IsActive)
	require.EqualValues(t, 7, row.TotalSupporters)
	require.EqualValues(t, 1, row.TotalContent)
}

func TestSearchContentFoldsCase(t *testing.T) {
	ix := newTestIndexer(t)
	ctx := context.Background()
	addr := testAddr(1)
	publish(ix, addr, 0, "Weekly STRASSE Update", 100)
	publish(ix, addr, 1, "Behind the scenes", 200)
	newest := publish(ix, addr, 2, "weekly strasse recap", 300)

	hits, err := ix.SearchContent(ctx, "Straße", 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	require.Equal(t, newest.String(), hits[0].Address)
	require.Equal(t, "video", hits[0].ContentType)

	hits, err = ix.SearchContent(ctx, "weekly", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	_, err = ix.SearchContent(ctx, "   ", 10)
	require.ErrorIs(t, err, ErrEmptyQuery)
}

func TestSearchContentEscapesWildcards(t *testing.T) {
	ix := newTestIndexer(t)
	addr := testAddr(1)
	publish(ix, addr, 0, "100% real", 100)
	publish(ix, addr, 1, "1000 views", 200)

	hits, err := ix.SearchContent(context.Background(), "100%", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "100% real", hits[0].Title)
}

func TestCommentCountTracked(t *testing.T) {
	ix := newTestIndexer(t)
	addr := testAddr(1)
	contentAddr := publish(ix, addr, 0, "Post", 100)

	content := &creator.Content{Creator: addr}
	require.NoError(t, content.Comments.Append(creator.Comment{Commenter: testAddr(3), Content: "hi"}))
	ix.Emit(creator.WrapEvent(creator.ContentCommentedEvent(contentAddr, content, testAddr(3))))

	hits, err := ix.SearchContent(context.Background(), "post", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, 1, hits[0].Comments)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "dsn")
	require.Error(t, err)
	_, err = Open("sqlite", "")
	require.Error(t, err)
}

func TestBackfillFromSnapshot(t *testing.T) {
	ix := newTestIndexer(t)
	ctx := context.Background()
	owner := testAddr(3)
	creators := []*creator.CreatorInfo{{
		Address:         owner,
		Authority:       testAddr(4),
		Name:            "Backfilled",
		IsActive:        true,
		TotalSupporters: 5,
		TotalContent:    1,
		RegisteredAt:    10,
	}, nil}
	contents := []*creator.ContentDetails{{
		Address:     testAddr(0x90),
		Creator:     owner,
		Title:       "Archive Episode",
		ContentType: creator.ContentTypeAudio,
		CreatedAt:   20,
		Comments:    []creator.Comment{{Content: "a"}, {Content: "b"}},
	}}

	require.NoError(t, ix.Backfill(ctx, creators, contents))
	// Backfilling twice must not duplicate rows.
	require.NoError(t, ix.Backfill(ctx, creators, contents))

	row, err := ix.Creator(ctx, owner.String())
	require.NoError(t, err)
	require.EqualValues(t, 5, row.TotalSupporters)
	require.EqualValues(t, 1, row.TotalContent)

	hits, err := ix.SearchContent(ctx, "archive", 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, 2, hits[0].Comments)
	require.Equal(t, "audio", hits[0].ContentType)
}
