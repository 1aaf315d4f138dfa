package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Pratham-creator-tech/vitality-live-sessions/internal/app"
	"github.com/Pratham-creator-tech/vitality-live-sessions/internal/config"
	"github.com/Pratham-creator-tech/vitality-live-sessions/internal/core"
	"github.com/Pratham-creator-tech/vitality-live-sessions/internal/domain"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Controller is the push half of the state broadcaster: one websocket
// per attendee, snapshots forwarded from the attendee's subscription.
type Controller struct {
	Coord *app.Coordinator
	Cfg   *config.Config
}

func NewController(coord *app.Coordinator, cfg *config.Config) *Controller {
	return &Controller{Coord: coord, Cfg: cfg}
}

// client is one connection's view: the stable participant identity from
// the client token, plus whatever session it is currently in or waiting
// on. Guarded by mu because the admission wait runs off the read loop.
type client struct {
	id   domain.ParticipantID
	conn *wsConn

	mu        sync.Mutex
	sessionID domain.SessionID
	sess      *core.Session
	joined    bool
	ticket    *core.AdmissionTicket
}

// HandleSession upgrades the connection and runs the read/write pumps.
// The participant identity is the client token issued by the router
// middleware; the coordinator trusts it as handed in.
func (ctl *Controller) HandleSession(ctx context.Context, c *gin.Context) {
	pid := domain.ParticipantID(c.GetString("client_token"))
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Str("module", "adapters.ws").Err(err).Msg("upgrade failed")
		return
	}
	conn.SetReadLimit(ctl.Cfg.ReadLimit)

	ctx, cancel := context.WithCancel(ctx)
	cl := &client{id: pid, conn: newWSConn(conn)}
	log.Info().Str("module", "adapters.ws").Str("participant", string(pid)).Msg("connection opened")

	go ctl.writePump(ctx, cl.conn)
	go ctl.readPump(ctx, cancel, cl)
}

func (ctl *Controller) writePump(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(ctl.Cfg.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case data := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Str("module", "adapters.ws").Err(err).Msg("write failed")
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, cl *client) {
	defer func() {
		cancel()
		ctl.cleanup(cl)
		cl.conn.Close()
		log.Info().Str("module", "adapters.ws").Str("participant", string(cl.id)).Msg("connection closed")
	}()

	readWindow := 2 * ctl.Cfg.PingPeriod
	_ = cl.conn.conn.SetReadDeadline(time.Now().Add(readWindow))
	cl.conn.conn.SetPongHandler(func(string) error {
		return cl.conn.conn.SetReadDeadline(time.Now().Add(readWindow))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := cl.conn.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Debug().Str("module", "adapters.ws").Err(err).Msg("read failed")
				}
				return
			}
			_ = cl.conn.conn.SetReadDeadline(time.Now().Add(readWindow))
			ctl.handleMessage(ctx, cl, data)
		}
	}
}

// cleanup treats a connection drop as an implicit leave: a pending
// request is withdrawn, a roster membership is released.
func (ctl *Controller) cleanup(cl *client) {
	cl.mu.Lock()
	sess := cl.sess
	sessionID := cl.sessionID
	joined := cl.joined
	ticket := cl.ticket
	cl.sess = nil
	cl.joined = false
	cl.ticket = nil
	cl.sessionID = ""
	cl.mu.Unlock()

	if sess == nil {
		return
	}
	if ticket != nil {
		// An approval may have landed just as the connection died;
		// Abandon turns that into a leave instead of a withdraw.
		ctl.Coord.Abandon(sess, ticket)
	}
	if joined {
		sess.Unsubscribe(cl.id)
		ctl.Coord.Leave(sessionID, cl.id)
	}
}

func (ctl *Controller) handleMessage(ctx context.Context, cl *client, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		ctl.sendError(cl, "bad json")
		return
	}

	switch env.Type {
	case "join":
		ctl.handleJoin(ctx, cl, data)
	case "leave":
		ctl.handleLeave(cl)
	case "update_media":
		ctl.handleUpdateMedia(cl, data)
	case "transfer_host":
		ctl.handleTransferHost(cl, data)
	case "resolve":
		ctl.handleResolve(cl, data)
	case "withdraw":
		ctl.handleWithdraw(cl, data)
	case "whoami":
		ctl.handleWhoAmI(cl)
	case "ping":
		ctl.sendJSON(cl, map[string]string{"type": "pong"})
	default:
		log.Debug().Str("module", "adapters.ws").Str("type", env.Type).Msg("unknown message type")
		ctl.sendError(cl, "unknown message type")
	}
}

func (ctl *Controller) handleJoin(ctx context.Context, cl *client, data []byte) {
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(cl, "bad join payload")
		return
	}
	if p.Session == "" {
		ctl.sendError(cl, "session required")
		return
	}

	cl.mu.Lock()
	busy := cl.joined || cl.ticket != nil
	cl.mu.Unlock()
	if busy {
		ctl.sendError(cl, "already in a session")
		return
	}

	res, err := ctl.Coord.Join(domain.SessionID(p.Session), cl.id, p.Name, p.AsHost, p.RequiresApproval)
	if err != nil {
		ctl.sendError(cl, err.Error())
		return
	}

	cl.mu.Lock()
	cl.sessionID = res.Session.ID
	cl.sess = res.Session
	if res.Admitted {
		cl.joined = true
	} else {
		cl.ticket = res.Ticket
	}
	cl.mu.Unlock()

	if res.Admitted {
		ctl.startStream(ctx, cl, res.Session)
		return
	}

	ctl.sendJSON(cl, admissionPendingMsg{
		Type:    "admission_pending",
		Session: res.Session.ID,
		Request: res.Ticket.ID(),
	})
	go ctl.awaitAdmission(ctx, cl, res.Session, res.Ticket)
}

// awaitAdmission keeps the requester's connection open until the host
// decides, the request times out, or the connection goes away.
func (ctl *Controller) awaitAdmission(ctx context.Context, cl *client, sess *core.Session, ticket *core.AdmissionTicket) {
	res, err := ctl.Coord.Await(ctx, sess, ticket)
	if err != nil {
		return
	}
	if ctx.Err() != nil {
		// The decision landed as the connection died. cleanup owns the
		// teardown, but it may have run before the roster change; make
		// sure an approved requester does not linger.
		if res.Admitted {
			ctl.Coord.Leave(sess.ID, cl.id)
		}
		return
	}

	cl.mu.Lock()
	cl.ticket = nil
	if res.Admitted {
		cl.joined = true
	} else {
		cl.sess = nil
		cl.sessionID = ""
	}
	cl.mu.Unlock()

	ctl.sendJSON(cl, admissionResultMsg{
		Type:     "admission_result",
		Session:  sess.ID,
		Request:  ticket.ID(),
		Decision: res.Decision,
	})
	if res.Admitted {
		ctl.startStream(ctx, cl, sess)
	}
}

// startStream subscribes the attendee and forwards snapshots until the
// subscription or the connection ends. The subscription delivers the
// current state first, so the client renders immediately.
func (ctl *Controller) startStream(ctx context.Context, cl *client, sess *core.Session) {
	sub, err := sess.Subscribe(cl.id)
	if err != nil {
		ctl.sendError(cl, err.Error())
		return
	}
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snap, ok := <-sub.Updates():
				if !ok {
					return
				}
				ctl.sendJSON(cl, sessionStateMsg{Type: "session_state", Snapshot: snap})
			}
		}
	}()
}

func (ctl *Controller) handleLeave(cl *client) {
	cl.mu.Lock()
	sess := cl.sess
	sessionID := cl.sessionID
	joined := cl.joined
	ticket := cl.ticket
	cl.sess = nil
	cl.joined = false
	cl.ticket = nil
	cl.sessionID = ""
	cl.mu.Unlock()

	if sess != nil {
		if ticket != nil {
			ctl.Coord.Abandon(sess, ticket)
		}
		if joined {
			sess.Unsubscribe(cl.id)
			ctl.Coord.Leave(sessionID, cl.id)
		}
	}
	ctl.sendJSON(cl, map[string]string{"type": "left"})
}

func (ctl *Controller) handleUpdateMedia(cl *client, data []byte) {
	var p updateMediaPayload
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendError(cl, "bad update_media payload")
		return
	}
	sessionID, ok := ctl.currentSession(cl)
	if !ok {
		ctl.sendError(cl, "not in a session")
		return
	}
	update := domain.CapabilityUpdate{Audio: p.Audio, Video: p.Video, Presenting: p.Presenting}
	if err := ctl.Coord.UpdateCapabilities(sessionID, cl.id, update); err != nil {
		ctl.sendError(cl, err.Error())
	}
}

func (ctl *Controller) handleTransferHost(cl *client, data []byte) {
	var p transferHostPayload
	if err := json.Unmarshal(data, &p); err != nil || p.To == "" {
		ctl.sendError(cl, "bad transfer_host payload")
		return
	}
	sessionID, ok := ctl.currentSession(cl)
	if !ok {
		ctl.sendError(cl, "not in a session")
		return
	}
	if err := ctl.Coord.TransferHost(sessionID, cl.id, domain.ParticipantID(p.To)); err != nil {
		ctl.sendError(cl, err.Error())
	}
}

func (ctl *Controller) handleResolve(cl *client, data []byte) {
	var p resolvePayload
	if err := json.Unmarshal(data, &p); err != nil || p.Request == "" {
		ctl.sendError(cl, "bad resolve payload")
		return
	}
	sessionID, ok := ctl.currentSession(cl)
	if !ok {
		ctl.sendError(cl, "not in a session")
		return
	}
	req, err := ctl.Coord.Resolve(sessionID, domain.RequestID(p.Request), domain.AdmissionStatus(p.Decision), cl.id)
	if err != nil {
		ctl.sendError(cl, err.Error())
		return
	}
	ctl.sendJSON(cl, admissionResultMsg{
		Type:     "admission_result",
		Session:  sessionID,
		Request:  req.ID,
		Decision: req.Status,
	})
}

func (ctl *Controller) handleWithdraw(cl *client, data []byte) {
	var p withdrawPayload
	if err := json.Unmarshal(data, &p); err != nil || p.Request == "" {
		ctl.sendError(cl, "bad withdraw payload")
		return
	}
	cl.mu.Lock()
	sess := cl.sess
	ticket := cl.ticket
	cl.mu.Unlock()
	if sess == nil || ticket == nil || string(ticket.ID()) != p.Request {
		ctl.sendError(cl, "no such pending request")
		return
	}
	if err := sess.Withdraw(ticket.ID()); err != nil {
		ctl.sendError(cl, err.Error())
	}
}

func (ctl *Controller) handleWhoAmI(cl *client) {
	cl.mu.Lock()
	sessionID := cl.sessionID
	cl.mu.Unlock()
	ctl.sendJSON(cl, whoamiMsg{
		Type:        "whoami",
		Participant: cl.id,
		Session:     sessionID,
	})
}

func (ctl *Controller) currentSession(cl *client) (domain.SessionID, bool) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	if !cl.joined {
		return "", false
	}
	return cl.sessionID, true
}

func (ctl *Controller) sendJSON(cl *client, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error().Str("module", "adapters.ws").Err(err).Msg("marshal failed")
		return
	}
	if err := cl.conn.TrySend(data); err == ErrBackpressure {
		log.Warn().Str("module", "adapters.ws").Str("participant", string(cl.id)).Msg("send buffer full, message dropped")
	}
}

func (ctl *Controller) sendError(cl *client, msg string) {
	ctl.sendJSON(cl, errorMsg{Type: "error", Error: msg})
}
