package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/motillonc/leetify-tools/runstore"
)

// Defines the public API for the monitor server. The monitor exposes the documents of a running invocation while it is
// still in progress, so reports can be inspected before the run has finished. It serves the documents held by a run
// store, the process metrics and a websocket that streams the progress of the run.
type Server interface {
	// Starts the server in the current thread and blocks until an error occurs or the server is stopped.
	Start() error
	// Stops the server
	Stop() error
}

type server struct {
	addr       string
	port       int
	logger     *zap.Logger
	store      runstore.Store
	httpServer *http.Server
	upgrader   *websocket.Upgrader
}

type reportIndex struct {
	Matches []string `json:"matches"`
	Summary bool     `json:"summary"`
}

// Creates a new monitor server, listening on a given address and port and serving the documents of the given store.
func New(addr string, port int, store runstore.Store, logger *zap.Logger) Server {
	return newServer(addr, port, store, logger)
}

func newServer(addr string, port int, store runstore.Store, logger *zap.Logger) *server {
	s := &server{
		addr:   addr,
		port:   port,
		logger: logger.Named("monitor"),
		store:  store,
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(request *http.Request) bool {
				return true
			},
		},
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", addr, port),
		Handler:      s.router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	return s
}

func (s *server) router() http.Handler {
	router := mux.NewRouter()

	router.Path("/reports").Methods("GET").HandlerFunc(s.handleReports)
	router.Path("/reports/{matchId}").Methods("GET").HandlerFunc(s.handleReport)
	router.Path("/reports/{matchId}/analysis").Methods("GET").HandlerFunc(s.handleAnalysis)
	router.Path("/summary").Methods("GET").HandlerFunc(s.handleSummary)
	router.Path("/metrics").Methods("GET").Handler(promhttp.Handler())

	router.Path("/websocket").Methods("GET").HandlerFunc(s.handleWebsocket)

	router.NotFoundHandler = http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		s.logger.Debug("unmatched request", zap.String("method", request.Method), zap.Stringer("url", request.URL))
		writer.WriteHeader(http.StatusNotFound)
	})

	return router
}

func (s *server) Start() error {
	s.logger.Info("starting monitor server", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

func (s *server) Stop() error {
	s.logger.Info("stopping monitor server", zap.String("addr", s.httpServer.Addr))

	s.store.Close()
	return s.httpServer.Shutdown(context.Background())
}

func (s *server) handleReports(writer http.ResponseWriter, request *http.Request) {
	_, hasSummary := s.store.Summary()
	s.writeJSON(writer, request, &reportIndex{Matches: s.store.MatchIDs(), Summary: hasSummary})
}

func (s *server) handleReport(writer http.ResponseWriter, request *http.Request) {
	matchID := mux.Vars(request)["matchId"]
	entry, present := s.store.Get(matchID)
	if !present || entry.Report == "" {
		s.logger.Debug("unknown report read", zap.String("remote", request.RemoteAddr), zap.String("match_id", matchID))
		writer.WriteHeader(http.StatusNotFound)
		return
	}
	s.writeText(writer, request, entry.Report)
}

func (s *server) handleAnalysis(writer http.ResponseWriter, request *http.Request) {
	matchID := mux.Vars(request)["matchId"]
	entry, present := s.store.Get(matchID)
	if !present || entry.Analysis == "" {
		s.logger.Debug("unknown analysis read", zap.String("remote", request.RemoteAddr), zap.String("match_id", matchID))
		writer.WriteHeader(http.StatusNotFound)
		return
	}
	s.writeText(writer, request, entry.Analysis)
}

func (s *server) handleSummary(writer http.ResponseWriter, request *http.Request) {
	summary, present := s.store.Summary()
	if !present {
		writer.WriteHeader(http.StatusNotFound)
		return
	}
	s.writeText(writer, request, summary)
}

// Streams progress events as JSON. The topic is a match id given by the "match" query parameter, all matches when
// absent.
func (s *server) handleWebsocket(writer http.ResponseWriter, request *http.Request) {
	topic := request.URL.Query().Get("match")
	if topic == "" {
		topic = runstore.AllMatches
	}

	// Subscribed before the upgrade completes, so the client sees every event written after its handshake.
	channel := s.store.GetChannel(topic)

	conn, upgradeError := s.upgrader.Upgrade(writer, request, nil)
	if upgradeError != nil {
		s.logger.Warn("could not upgrade websocket connection",
			zap.String("remote", request.RemoteAddr), zap.String("topic", topic), zap.Error(upgradeError))
		s.store.ReleaseChannel(topic, channel)
		return
	}
	defer s.store.ReleaseChannel(topic, channel)
	defer conn.Close()

	// Clients never send data. Reading processes control frames and notices when the client goes away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, readError := conn.NextReader(); readError != nil {
				return
			}
		}
	}()

	for {
		select {
		case progress, more := <-channel:
			if !more {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished"))
				return
			}
			if ioError := conn.WriteJSON(progress); ioError != nil {
				s.logger.Debug("could not write progress",
					zap.String("remote", request.RemoteAddr), zap.String("topic", topic), zap.Error(ioError))
				return
			}
		case <-gone:
			s.logger.Debug("websocket client left", zap.String("remote", request.RemoteAddr), zap.String("topic", topic))
			return
		}
	}
}

func (s *server) writeJSON(writer http.ResponseWriter, request *http.Request, value interface{}) {
	response, jsonError := json.Marshal(value)
	if jsonError != nil {
		s.logger.Error("could not serialize response", zap.String("remote", request.RemoteAddr), zap.Error(jsonError))
		writer.WriteHeader(http.StatusInternalServerError)
		return
	}

	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(http.StatusOK)
	if _, ioError := writer.Write(response); ioError != nil {
		s.logger.Debug("could not write response", zap.String("remote", request.RemoteAddr), zap.Error(ioError))
	}
}

func (s *server) writeText(writer http.ResponseWriter, request *http.Request, text string) {
	writer.Header().Set("Content-Type", "text/plain; charset=utf-8")
	writer.WriteHeader(http.StatusOK)
	if _, ioError := writer.Write([]byte(text)); ioError != nil {
		s.logger.Debug("could not write response", zap.String("remote", request.RemoteAddr), zap.Error(ioError))
	}
}
