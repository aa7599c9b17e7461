// Package devserver is an in-memory stand-in for the game server: it issues
// session tokens on /api/login and answers the stream commands on /ws. It
// backs integration tests and `ddtclient serve`.
package devserver

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"ddt.game/internal/dailysign"
	"ddt.game/internal/httpapi"
	"ddt.game/internal/inventory"
	"ddt.game/internal/player"
	"ddt.game/internal/protocol"
)

const (
	StreamPath  = "/ws"
	ProfilePath = "/api/player/profile"

	// Application codes returned by the stub.
	CodeBadRequest    = 400
	CodeUnauthorized  = 401
	CodeNotFound      = 404
	CodeBadLogin      = 1
	CodeNotEnough     = 2
	CodeAlreadySigned = 3

	writeWait = 5 * time.Second
	readWait  = 60 * time.Second
)

type Options struct {
	Account  string
	Password string

	Profile player.Profile
	Items   []inventory.Item
	Sign    dailysign.Status

	// Now defaults to time.Now and decides the sign-in day.
	Now func() time.Time
}

type Server struct {
	opts     Options
	log      *log.Logger
	upgrader websocket.Upgrader
	commands *protocol.Validator

	mu      sync.Mutex
	tokens  map[string]string
	profile player.Profile
	bag     map[int64]inventory.Item
	sign    dailysign.Status
	conns   map[*peer]struct{}
}

type peer struct {
	conn *websocket.Conn
	out  chan []byte
	once sync.Once
	done chan struct{}
}

func (p *peer) close() {
	p.once.Do(func() { close(p.done) })
}

func New(opts Options, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Profile.Username == "" {
		opts.Profile = player.Profile{ID: 1, Username: opts.Account, Nickname: opts.Account, Level: 1}
	}
	s := &Server{
		opts: opts,
		log:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		tokens:  map[string]string{},
		profile: opts.Profile,
		bag:     map[int64]inventory.Item{},
		sign:    opts.Sign,
		conns:   map[*peer]struct{}{},
	}
	for _, it := range opts.Items {
		s.bag[it.ItemID] = it
	}
	v, err := protocol.NewSchemaValidator(protocol.SchemaCommand)
	if err != nil {
		logger.Printf("command schema disabled: %v", err)
	} else {
		s.commands = v
	}
	return s
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(httpapi.LoginPath, s.handleLogin)
	mux.HandleFunc(ProfilePath, s.handleProfile)
	mux.HandleFunc(StreamPath, s.handleStream)
	return mux
}

// Issue registers a token for account without a login round trip.
func (s *Server) Issue(account string) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	s.mu.Lock()
	s.tokens[token] = account
	s.mu.Unlock()
	return token
}

// Sessions returns the number of open stream connections.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Push sends an unsolicited envelope to every open stream.
func (s *Server) Push(cmd string, code int, msg string, data any) error {
	b, err := protocol.EncodeReply(cmd, "", code, msg, data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for p := range s.conns {
		select {
		case p.out <- b:
		case <-p.done:
		}
	}
	return nil
}

// DropAll closes every stream without a close handshake.
func (s *Server) DropAll() {
	s.mu.Lock()
	peers := make([]*peer, 0, len(s.conns))
	for p := range s.conns {
		peers = append(peers, p)
	}
	s.mu.Unlock()
	for _, p := range peers {
		_ = p.conn.Close()
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req protocol.LoginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 64*1024)).Decode(&req); err != nil {
		writeAPI(w, CodeBadRequest, "bad request body", nil)
		return
	}
	if req.Username != s.opts.Account || req.Password != s.opts.Password {
		s.log.Printf("login rejected account=%s", req.Username)
		writeAPI(w, CodeBadLogin, "invalid account or password", nil)
		return
	}
	token := s.Issue(req.Username)
	s.log.Printf("login ok account=%s", req.Username)
	writeAPI(w, protocol.CodeOK, "ok", token)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || !s.known(token) {
		writeAPI(w, CodeUnauthorized, "unauthorized", nil)
		return
	}
	s.mu.Lock()
	p := s.profile
	s.mu.Unlock()
	b, _ := json.Marshal(p)
	writeAPI(w, protocol.CodeOK, "ok", string(b))
}

func (s *Server) known(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tokens[token]
	return token != "" && ok
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if !s.known(r.URL.Query().Get("token")) {
		http.Error(w, "unknown token", http.StatusUnauthorized)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	p := &peer{conn: conn, out: make(chan []byte, 32), done: make(chan struct{})}
	s.mu.Lock()
	s.conns[p] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, p)
		s.mu.Unlock()
		p.close()
	}()

	// Writer goroutine.
	go func() {
		for {
			select {
			case <-p.done:
				return
			case b := <-p.out:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					p.close()
					return
				}
			}
		}
	}()

	// Reader loop.
	for {
		_ = conn.SetReadDeadline(time.Now().Add(readWait))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if s.commands != nil {
			if err := s.commands.Validate(msg); err != nil {
				s.log.Printf("drop client frame: %v", err)
				continue
			}
		}
		f, err := protocol.DecodeOut(msg)
		if err != nil {
			continue
		}
		reply, err := s.handle(f)
		if err != nil {
			s.log.Printf("encode %s reply: %v", f.Cmd, err)
			continue
		}
		select {
		case p.out <- reply:
		case <-p.done:
			return
		}
	}
}

func (s *Server) handle(f protocol.OutFrame) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch f.Cmd {
	case protocol.CmdPlayerGet:
		return protocol.EncodeReply(f.Cmd, f.ReqID, protocol.CodeOK, "ok", s.profile)

	case protocol.CmdBagGet:
		items := make([]inventory.Item, 0, len(s.bag))
		for _, it := range s.bag {
			items = append(items, it)
		}
		sort.Slice(items, func(i, j int) bool { return items[i].ItemID < items[j].ItemID })
		return protocol.EncodeReply(f.Cmd, f.ReqID, protocol.CodeOK, "ok", map[string]any{"items": items})

	case protocol.CmdBagUseItem:
		var req inventory.UseItemRequest
		if err := json.Unmarshal([]byte(f.Data), &req); err != nil || req.Count <= 0 {
			return protocol.EncodeReply(f.Cmd, f.ReqID, CodeBadRequest, "bad useItem request", nil)
		}
		it, ok := s.bag[req.ItemID]
		if !ok || it.Count < req.Count {
			return protocol.EncodeReply(f.Cmd, f.ReqID, CodeNotEnough, "not enough items", nil)
		}
		it.Count -= req.Count
		s.bag[req.ItemID] = it
		return protocol.EncodeReply(f.Cmd, f.ReqID, protocol.CodeOK, "ok", map[string]any{
			"itemId":    it.ItemID,
			"leftCount": it.Count,
		})

	case protocol.CmdDailySignInfo:
		s.refreshSignLocked()
		return protocol.EncodeReply(f.Cmd, f.ReqID, protocol.CodeOK, "ok", s.sign)

	case protocol.CmdDailySignSign:
		s.refreshSignLocked()
		if s.sign.SignedToday {
			return protocol.EncodeReply(f.Cmd, f.ReqID, CodeAlreadySigned, "already signed today", nil)
		}
		s.sign.SignInDays++
		s.sign.SignedToday = true
		s.sign.LastSignInDate = s.today()
		return protocol.EncodeReply(f.Cmd, f.ReqID, protocol.CodeOK, "ok", s.sign)

	default:
		return protocol.EncodeReply(f.Cmd, f.ReqID, CodeNotFound, "unknown command", nil)
	}
}

func (s *Server) today() string { return s.opts.Now().Format("2006-01-02") }

func (s *Server) refreshSignLocked() {
	s.sign.SignedToday = s.sign.LastSignInDate == s.today()
}

func writeAPI(w http.ResponseWriter, code int, msg string, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
		Data any    `json:"data"`
	}{code, msg, data})
}
