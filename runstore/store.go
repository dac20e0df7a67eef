package runstore

import (
	"sort"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/motillonc/leetify-tools/model"
)

const (
	channelBufferSize = 32
	summaryKey        = "\x00summary"

	// Topic of the channel that receives the progress of every match.
	AllMatches = "*"
)

var (
	operationsCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "leetify",
		Subsystem: "runstore",
		Name:      "operations",
		Help:      "Counts the number of operations on the run store",
	}, []string{"operation"})
)

// Progress is pushed to subscribers whenever a document of the run changes.
type Progress struct {
	MatchID string    `json:"matchId,omitempty"`
	Kind    string    `json:"kind"`
	Time    time.Time `json:"time"`
}

// Entry holds the documents of one match that were produced so far.
type Entry struct {
	MatchID  string `json:"matchId"`
	Report   string `json:"report,omitempty"`
	Analysis string `json:"analysis,omitempty"`
}

// Defines the public API for the run store. The store keeps the documents of the current run in memory, so they can be
// inspected while the run is still in progress, and evicts them once they go stale. Additionally the store provides
// channels that get notified whenever a document is added. The store is a sink.Sink.
type Store interface {
	// Returns a new channel that is filled with progress of the given match, or of all matches for AllMatches. Every
	// subscriber gets its own channel and sees every event. Calling this method also means that the caller needs to
	// call ReleaseChannel(topic, channel), once done with using the channel.
	GetChannel(topic string) chan *Progress
	// Releases and closes a channel that was previously acquired by GetChannel(topic).
	ReleaseChannel(topic string, channel chan *Progress)
	// Returns the documents of a match, if any are present.
	Get(matchID string) (entry *Entry, present bool)
	// Returns the global summary, if it was written already.
	Summary() (summary string, present bool)
	// Returns the ids of all matches with at least one document, sorted.
	MatchIDs() []string
	WriteReport(matchID model.MatchID, text string) error
	WriteAnalysis(matchID model.MatchID, text string) error
	WriteSummary(text string) error
	// Closes the store and releases all resources held by it.
	Close()
}

type store struct {
	subscribers   map[string]map[chan *Progress]struct{}
	internalCache *cache.Cache
	locker        sync.Locker
}

// Creates a new run store, with a given TTL. The TTL is the duration for documents, before they are considered stale.
func New(ttl time.Duration) Store {
	return newStore(ttl)
}

func newStore(ttl time.Duration) *store {
	internalCache := cache.New(ttl, ttl*10)
	subscribers := make(map[string]map[chan *Progress]struct{})
	store := &store{subscribers, internalCache, &sync.Mutex{}}

	internalCache.OnEvicted(func(key string, item interface{}) {
		if key == summaryKey {
			store.pushUpdate(&Progress{Kind: "expired", Time: time.Now()})
			return
		}
		store.pushUpdate(&Progress{MatchID: key, Kind: "expired", Time: time.Now()})
	})

	return store
}

func (s *store) GetChannel(topic string) chan *Progress {
	operationsCounter.WithLabelValues("channel_get").Inc()

	s.locker.Lock()
	defer s.locker.Unlock()

	if _, present := s.subscribers[topic]; !present {
		s.subscribers[topic] = make(map[chan *Progress]struct{})
	}

	channel := make(chan *Progress, channelBufferSize)
	s.subscribers[topic][channel] = struct{}{}
	return channel
}

func (s *store) ReleaseChannel(topic string, channel chan *Progress) {
	operationsCounter.WithLabelValues("channel_release").Inc()

	s.locker.Lock()
	defer s.locker.Unlock()

	channels, present := s.subscribers[topic]
	if !present {
		return
	}
	if _, subscribed := channels[channel]; subscribed {
		delete(channels, channel)
		close(channel)
	}
	if len(channels) == 0 {
		delete(s.subscribers, topic)
	}
}

func (s *store) Get(matchID string) (entry *Entry, present bool) {
	operationsCounter.WithLabelValues("get").Inc()

	if cached, isCached := s.internalCache.Get(matchID); isCached && matchID != summaryKey {
		copied := *cached.(*Entry)
		entry = &copied
		present = true
	}
	return
}

func (s *store) Summary() (summary string, present bool) {
	operationsCounter.WithLabelValues("summary").Inc()

	if cached, isCached := s.internalCache.Get(summaryKey); isCached {
		summary = cached.(string)
		present = true
	}
	return
}

func (s *store) MatchIDs() []string {
	items := s.internalCache.Items()
	ids := make([]string, 0, len(items))
	for key := range items {
		if key != summaryKey {
			ids = append(ids, key)
		}
	}
	sort.Strings(ids)
	return ids
}

func (s *store) WriteReport(matchID model.MatchID, text string) error {
	operationsCounter.WithLabelValues("put_report").Inc()

	s.update(string(matchID), func(entry *Entry) { entry.Report = text })
	s.pushUpdate(&Progress{MatchID: string(matchID), Kind: "report", Time: time.Now()})
	return nil
}

func (s *store) WriteAnalysis(matchID model.MatchID, text string) error {
	operationsCounter.WithLabelValues("put_analysis").Inc()

	s.update(string(matchID), func(entry *Entry) { entry.Analysis = text })
	s.pushUpdate(&Progress{MatchID: string(matchID), Kind: "analysis", Time: time.Now()})
	return nil
}

func (s *store) WriteSummary(text string) error {
	operationsCounter.WithLabelValues("put_summary").Inc()

	s.internalCache.Set(summaryKey, text, cache.DefaultExpiration)
	s.pushUpdate(&Progress{Kind: "summary", Time: time.Now()})
	return nil
}

func (s *store) Close() {
	s.locker.Lock()
	defer s.locker.Unlock()

	for topic, channels := range s.subscribers {
		delete(s.subscribers, topic)
		for channel := range channels {
			close(channel)
		}
	}
}

// Entries are replaced, never modified in place, so readers holding a previous entry are not affected.
func (s *store) update(matchID string, change func(entry *Entry)) {
	s.locker.Lock()
	defer s.locker.Unlock()

	entry := Entry{MatchID: matchID}
	if cached, isCached := s.internalCache.Get(matchID); isCached {
		entry = *cached.(*Entry)
	}
	change(&entry)
	s.internalCache.Set(matchID, &entry, cache.DefaultExpiration)
}

// Delivers the progress to the match's topic and to AllMatches. Subscribers that do not keep up lose events instead of
// blocking the run.
func (s *store) pushUpdate(progress *Progress) {
	s.locker.Lock()
	defer s.locker.Unlock()

	topics := []string{AllMatches}
	if progress.MatchID != "" {
		topics = append(topics, progress.MatchID)
	}

	for _, topic := range topics {
		for channel := range s.subscribers[topic] {
			select {
			case channel <- progress:
			default:
				operationsCounter.WithLabelValues("dropped").Inc()
			}
		}
	}
}
