package plugin

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"mainstage/internal/ir"
)

// netPlugin is the native `net` plugin, adapted from the teacher's
// WebSocketConn/WebSocketServer connection manager into plugin-call
// shaped connect/send/receive/close functions reachable from MainStage
// via PluginCall.
type netPlugin struct {
	mu    sync.Mutex
	conns map[string]*wsConn
	next  int64
}

type wsConn struct {
	conn       *websocket.Conn
	mu         sync.Mutex
	closed     bool
	messagesCh chan []byte
}

func newNetPlugin() *netPlugin {
	return &netPlugin{conns: make(map[string]*wsConn)}
}

func (p *netPlugin) Name() string        { return "net" }
func (p *netPlugin) Manifest() *Manifest { return &Manifest{Name: "net", Kind: "native"} }

func (p *netPlugin) Call(funcName string, args []ir.Value) (ir.Value, error) {
	switch funcName {
	case "ws_connect":
		return p.connect(args)
	case "ws_send":
		return p.send(args)
	case "ws_recv":
		return p.receive(args)
	case "ws_close":
		return p.close(args)
	default:
		return ir.Value{}, fmt.Errorf("net: unknown function %q", funcName)
	}
}

func (c *wsConn) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			close(c.messagesCh)
			return
		}
		c.messagesCh <- data
	}
}

func (p *netPlugin) connect(args []ir.Value) (ir.Value, error) {
	if len(args) < 1 {
		return ir.Value{}, fmt.Errorf("net.connect: expected (url)")
	}
	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.Dial(args[0].S, nil)
	if err != nil {
		return ir.Value{}, fmt.Errorf("net.connect: %w", err)
	}

	c := &wsConn{conn: conn, messagesCh: make(chan []byte, 100)}
	go c.readLoop()

	p.mu.Lock()
	p.next++
	id := fmt.Sprintf("ws_%d", p.next)
	p.conns[id] = c
	p.mu.Unlock()

	return ir.Str(id), nil
}

func (p *netPlugin) lookup(id string) (*wsConn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.conns[id]
	if !ok {
		return nil, fmt.Errorf("net: no open connection %q", id)
	}
	return c, nil
}

func (p *netPlugin) send(args []ir.Value) (ir.Value, error) {
	if len(args) < 2 {
		return ir.Value{}, fmt.Errorf("net.send: expected (id, message)")
	}
	c, err := p.lookup(args[0].S)
	if err != nil {
		return ir.Value{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ir.Value{}, fmt.Errorf("net.send: connection %q is closed", args[0].S)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(args[1].S)); err != nil {
		return ir.Value{}, fmt.Errorf("net.send: %w", err)
	}
	return ir.Bool(true), nil
}

// receive waits up to a timeout (seconds, default 10) for the next queued
// message, returning Null on timeout rather than erroring, since a
// timed-out receive is an ordinary outcome for a polling caller.
func (p *netPlugin) receive(args []ir.Value) (ir.Value, error) {
	if len(args) < 1 {
		return ir.Value{}, fmt.Errorf("net.receive: expected (id, [timeoutSeconds])")
	}
	c, err := p.lookup(args[0].S)
	if err != nil {
		return ir.Value{}, err
	}
	timeout := 10 * time.Second
	if len(args) > 1 {
		if n, ok := args[1].ToNumber(); ok {
			timeout = time.Duration(n * float64(time.Second))
		}
	}

	select {
	case msg, ok := <-c.messagesCh:
		if !ok {
			return ir.Value{}, fmt.Errorf("net.receive: connection %q closed", args[0].S)
		}
		return ir.Str(string(msg)), nil
	case <-time.After(timeout):
		return ir.Null(), nil
	}
}

func (p *netPlugin) close(args []ir.Value) (ir.Value, error) {
	if len(args) < 1 {
		return ir.Value{}, fmt.Errorf("net.close: expected (id)")
	}
	p.mu.Lock()
	c, ok := p.conns[args[0].S]
	if ok {
		delete(p.conns, args[0].S)
	}
	p.mu.Unlock()
	if !ok {
		return ir.Bool(false), nil
	}

	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return ir.Bool(c.conn.Close() == nil), nil
}
