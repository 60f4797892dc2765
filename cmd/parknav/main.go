package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/evermore-parks/parknav/internal/config"
	"github.com/evermore-parks/parknav/internal/geoloc"
	"github.com/evermore-parks/parknav/internal/mockfeeds"
	"github.com/evermore-parks/parknav/internal/navigation"
	"github.com/evermore-parks/parknav/internal/routing"
	"github.com/evermore-parks/parknav/pkg/geo"
	"github.com/evermore-parks/parknav/pkg/util"
)

// uiRequest is one command from a connected client.
type uiRequest struct {
	RequestID int64           `json:"req_id"`
	Type      string          `json:"type"`
	Params    json.RawMessage `json:"params"`
}

type uiResult struct {
	RequestID int64  `json:"req_id"`
	Type      string `json:"type"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

type uiStateUpdate struct {
	Type string                 `json:"type"`
	Data navigation.StateUpdate `json:"data"`
}

type startParams struct {
	Origin      *geo.Coordinate `json:"origin"`
	Destination *geo.Coordinate `json:"destination"`
}

// logSpeaker voices instructions into the process log. A real client does
// text-to-speech on the device; server side the spoken line is still worth a
// record.
type logSpeaker struct{}

func (logSpeaker) Speak(text string) { util.LogWithLabel("voice", "%s", text) }
func (logSpeaker) Stop()             { util.LogWithLabel("voice", "speech stopped") }

// uiServer fans state updates out to every connected websocket client and
// feeds their commands into the navigation service.
type uiServer struct {
	service  navigation.ServiceInterface
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]*sync.Mutex
}

func newUIServer(service navigation.ServiceInterface) *uiServer {
	s := &uiServer{
		service:  service,
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		clients:  make(map[*websocket.Conn]*sync.Mutex),
	}
	service.SetListener(s.broadcast)
	return s
}

func (s *uiServer) broadcast(update navigation.StateUpdate) {
	payload := uiStateUpdate{Type: "state_update", Data: update}
	s.mu.Lock()
	conns := make(map[*websocket.Conn]*sync.Mutex, len(s.clients))
	for conn, wl := range s.clients {
		conns[conn] = wl
	}
	s.mu.Unlock()

	for conn, wl := range conns {
		wl.Lock()
		err := util.SendJSON(conn, payload)
		wl.Unlock()
		if err != nil {
			log.Printf("Error pushing state update, dropping client: %v", err)
			s.drop(conn)
		}
	}
}

func (s *uiServer) drop(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
	conn.Close()
}

func (s *uiServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Error upgrading UI connection: %v", err)
		return
	}

	writeLock := &sync.Mutex{}
	s.mu.Lock()
	s.clients[conn] = writeLock
	s.mu.Unlock()

	// Prime the new client with the current state.
	writeLock.Lock()
	primeErr := util.SendJSON(conn, uiStateUpdate{Type: "state_update", Data: s.service.Snapshot()})
	writeLock.Unlock()
	if primeErr != nil {
		s.drop(conn)
		return
	}

	for {
		var req uiRequest
		if err := conn.ReadJSON(&req); err != nil {
			s.drop(conn)
			return
		}
		result := uiResult{RequestID: req.RequestID, Type: "result", Success: true}
		switch req.Type {
		case "start_navigation":
			var params startParams
			if err := json.Unmarshal(req.Params, &params); err != nil {
				result.Success = false
				result.Error = fmt.Sprintf("bad start params: %v", err)
			} else if err := s.service.Start(params.Origin, params.Destination); err != nil {
				result.Success = false
				result.Error = err.Error()
			}
		case "stop_navigation":
			s.service.Stop()
		case "cancel_navigation":
			s.service.Cancel()
		default:
			result.Success = false
			result.Error = fmt.Sprintf("unknown request type %q", req.Type)
		}
		writeLock.Lock()
		err := util.SendJSON(conn, result)
		writeLock.Unlock()
		if err != nil {
			s.drop(conn)
			return
		}
	}
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	mock := flag.Bool("mock", false, "serve built-in mock routing and location feeds")
	mockPort := flag.Int("mock-port", 9151, "port for the mock feeds when -mock is set")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	if *mock {
		fixes := mockfeeds.DefaultFixes(cfg.Navigation.Gate.Lat, cfg.Navigation.Gate.Lng)
		mockSrv := mockfeeds.Start(strconv.Itoa(*mockPort), fixes, 1*time.Second)
		defer mockSrv.Close()
		base := fmt.Sprintf("http://127.0.0.1:%d/route/v1", *mockPort)
		cfg.Routing.DrivingBaseURL = base + "/driving"
		cfg.Routing.WalkingBaseURL = base + "/walking"
		cfg.Geolocation.FeedURL = fmt.Sprintf("ws://127.0.0.1:%d/feed", *mockPort)
		log.Printf("Mock feeds listening on port %d", *mockPort)
	}

	router := routing.NewClient(cfg.Routing)
	locations := geoloc.NewFeedClient(cfg.Geolocation)
	composer := navigation.NewComposer(router, cfg.Navigation)
	service := navigation.New(cfg.Navigation, composer, locations, logSpeaker{})
	ui := newUIServer(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", ui.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: mux,
	}
	go func() {
		log.Printf("Navigation engine listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("FATAL: %v", err)
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	<-interrupt

	log.Println("Interrupt received. Shutting down...")
	service.Stop()
	server.Close()
}
