package runstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motillonc/leetify-tools/model"
)

func TestStoring(t *testing.T) {
	store := newStore(15 * time.Millisecond)
	require.NoError(t, store.WriteReport("m1", "report"))

	entry, present := store.Get("m1")
	assert.True(t, present)
	assert.Equal(t, &Entry{MatchID: "m1", Report: "report"}, entry)

	time.Sleep(20 * time.Millisecond)

	entry, present = store.Get("m1")
	assert.False(t, present)
	assert.Nil(t, entry)
}

func TestDocumentsAccumulate(t *testing.T) {
	store := newStore(15 * time.Minute)
	require.NoError(t, store.WriteReport("m2", "report 2"))
	require.NoError(t, store.WriteReport("m1", "report 1"))
	require.NoError(t, store.WriteAnalysis("m1", "analysis 1"))

	entry, present := store.Get("m1")
	require.True(t, present)
	assert.Equal(t, "report 1", entry.Report)
	assert.Equal(t, "analysis 1", entry.Analysis)

	_, present = store.Summary()
	assert.False(t, present)
	require.NoError(t, store.WriteSummary("summary"))

	summary, present := store.Summary()
	assert.True(t, present)
	assert.Equal(t, "summary", summary)

	assert.Equal(t, []string{"m1", "m2"}, store.MatchIDs())
	_, present = store.Get(summaryKey)
	assert.False(t, present)
}

func TestChannelReceivesProgress(t *testing.T) {
	store := newStore(15 * time.Minute)

	all := store.GetChannel(AllMatches)
	single := store.GetChannel("m1")

	require.NoError(t, store.WriteReport("m1", "report"))
	require.NoError(t, store.WriteReport("m2", "report"))
	require.NoError(t, store.WriteSummary("summary"))

	assertProgress(t, all, "m1", "report")
	assertProgress(t, all, "m2", "report")
	assertProgress(t, all, "", "summary")
	assertProgress(t, single, "m1", "report")
	assert.Len(t, single, 0)

	store.ReleaseChannel("m1", single)
	assertClosed(t, single)
	store.ReleaseChannel(AllMatches, all)
	assertClosed(t, all)
}

func TestEverySubscriberReceivesEveryEvent(t *testing.T) {
	store := newStore(15 * time.Minute)

	first := store.GetChannel(AllMatches)
	second := store.GetChannel(AllMatches)
	assert.NotEqual(t, first, second)

	matchIDs := []string{"m1", "m2", "m3", "m4"}
	for _, matchID := range matchIDs {
		require.NoError(t, store.WriteReport(model.MatchID(matchID), "report"))
	}

	for _, channel := range []chan *Progress{first, second} {
		assert.Len(t, channel, len(matchIDs))
		for _, matchID := range matchIDs {
			assertProgress(t, channel, matchID, "report")
		}
	}

	store.ReleaseChannel(AllMatches, first)
	assertClosed(t, first)

	require.NoError(t, store.WriteAnalysis("m1", "analysis"))
	assertProgress(t, second, "m1", "analysis")

	store.ReleaseChannel(AllMatches, second)
	assertClosed(t, second)
	assert.Empty(t, store.subscribers)
}

func TestReleaseUnknownChannel(t *testing.T) {
	store := newStore(15 * time.Minute)
	channel := store.GetChannel("m1")

	store.ReleaseChannel("m2", channel)
	store.ReleaseChannel("m1", make(chan *Progress))

	require.NoError(t, store.WriteReport("m1", "report"))
	assertProgress(t, channel, "m1", "report")

	store.ReleaseChannel("m1", channel)
	assertClosed(t, channel)
	store.ReleaseChannel("m1", channel)
}

func TestChannelStoreTimeout(t *testing.T) {
	store := newStore(15 * time.Millisecond)
	require.NoError(t, store.WriteReport("m1", "report"))

	channel := store.GetChannel("m1")

	select {
	case progress := <-channel:
		assert.Equal(t, "m1", progress.MatchID)
		assert.Equal(t, "expired", progress.Kind)
	case <-time.After(time.Second):
		t.Fatal("no eviction progress received")
	}

	store.ReleaseChannel("m1", channel)
	assertClosed(t, channel)
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	store := newStore(15 * time.Minute)
	channel := store.GetChannel(AllMatches)

	for i := 0; i < channelBufferSize*2; i++ {
		require.NoError(t, store.WriteReport("m1", "report"))
	}
	assert.Len(t, channel, channelBufferSize)
}

func TestChannelStoreClose(t *testing.T) {
	store := newStore(15 * time.Minute)

	channel := store.GetChannel("m1")
	assert.NotNil(t, channel)

	store.Close()
	assertClosed(t, channel)
	store.ReleaseChannel("m1", channel)
}

func assertProgress(t *testing.T, channel chan *Progress, matchID, kind string) {
	t.Helper()
	select {
	case progress, more := <-channel:
		require.True(t, more)
		assert.Equal(t, matchID, progress.MatchID)
		assert.Equal(t, kind, progress.Kind)
		assert.False(t, progress.Time.IsZero())
	default:
		t.Fatalf("expected %s progress for %q", kind, matchID)
	}
}

func assertClosed(t *testing.T, channel chan *Progress) {
	t.Helper()
	_, more := <-channel
	assert.False(t, more)
}
