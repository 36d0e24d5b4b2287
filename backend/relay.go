// Package backend maintains the connection to the wallet daemon: a stream
// of newline-delimited JSON envelopes carrying pushed events and
// request/response commands. The reconciliation core never touches the
// wire, it only consumes the per-event channels exposed here.
package backend

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"gitlab.com/zanolabs/escrowd/interfaces"
	"gitlab.com/zanolabs/escrowd/lib"
)

const (
	eventChanBuffer = 100
	// daemon pushes can be large (batched sync payloads)
	maxLineSize = 4 * 1024 * 1024
)

var (
	ErrNotConnected = errors.New("daemon connection is down")
	ErrCallTimeout  = errors.New("command response timeout")
)

// envelope is a single line on the wire. Pushes carry event+data, command
// requests id+method+params, command responses id+success.
type envelope struct {
	Event   string          `json:"event,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	ID      string          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  interface{}     `json:"params,omitempty"`
	Success *bool           `json:"success,omitempty"`
}

type Relay struct {
	addr             string
	callTimeout      time.Duration
	reconnectTimeout time.Duration

	conn   net.Conn
	connMu sync.Mutex // guards conn and writes to it

	subs   map[string][]chan json.RawMessage
	subsMu sync.RWMutex

	pending sync.Map // request id -> chan bool

	log interfaces.ILogger
}

func NewRelay(addr string, callTimeout, reconnectTimeout time.Duration, log interfaces.ILogger) *Relay {
	return &Relay{
		addr:             addr,
		callTimeout:      callTimeout,
		reconnectTimeout: reconnectTimeout,
		subs:             make(map[string][]chan json.RawMessage),
		log:              log,
	}
}

// EventSubscribe returns a channel delivering the raw payload of every
// pushed event with the given name, in arrival order. Subscribe before
// calling Run to avoid missing events.
func (r *Relay) EventSubscribe(event string) <-chan json.RawMessage {
	ch := make(chan json.RawMessage, eventChanBuffer)
	r.subsMu.Lock()
	r.subs[event] = append(r.subs[event], ch)
	r.subsMu.Unlock()
	return ch
}

// Run connects to the daemon and reads pushed envelopes until the context
// is cancelled, reconnecting on connection loss.
func (r *Relay) Run(ctx context.Context) error {
	for {
		err := r.connect(ctx)
		if err != nil {
			return err
		}

		err = r.readLoop(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.log.Warnf("daemon connection lost: %s, reconnecting", err)
		r.dropConn()
		r.failPending()
	}
}

func (r *Relay) connect(ctx context.Context) error {
	// retries forever, the daemon owns the process lifecycle
	return lib.Poll(ctx, time.Duration(math.MaxInt64), func() error {
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", r.addr)
		if err != nil {
			r.log.Warnf("cannot connect to daemon %s: %s", r.addr, err)
			return err
		}

		r.connMu.Lock()
		r.conn = conn
		r.connMu.Unlock()

		r.log.Infof("connected to daemon %s", r.addr)
		return r.sendSubscriptions()
	}, r.reconnectTimeout)
}

// sendSubscriptions tells the daemon which events to push on this
// connection. Repeated after every reconnect.
func (r *Relay) sendSubscriptions() error {
	r.subsMu.RLock()
	events := make([]string, 0, len(r.subs))
	for name := range r.subs {
		events = append(events, name)
	}
	r.subsMu.RUnlock()

	if len(events) == 0 {
		return nil
	}
	return r.write(envelope{
		ID:     uuid.NewString(),
		Method: "eventSubscribe",
		Params: events,
	})
}

func (r *Relay) readLoop(ctx context.Context) error {
	r.connMu.Lock()
	conn := r.conn
	r.connMu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var env envelope
		if err := json.Unmarshal(line, &env); err != nil {
			r.log.Errorf("unknown daemon message: %s", string(line))
			continue
		}

		switch {
		case env.Event != "":
			r.dispatch(env.Event, env.Data)
		case env.ID != "":
			r.resolve(env.ID, env.Success != nil && *env.Success)
		}
	}

	if err := scanner.Err(); err != nil {
		return err
	}
	return ErrNotConnected
}

func (r *Relay) dispatch(event string, data json.RawMessage) {
	r.subsMu.RLock()
	listeners := r.subs[event]
	r.subsMu.RUnlock()

	for _, ch := range listeners {
		ch <- data
	}
}

func (r *Relay) resolve(id string, success bool) {
	if ch, ok := r.pending.LoadAndDelete(id); ok {
		ch.(chan bool) <- success
	}
}

func (r *Relay) failPending() {
	r.pending.Range(func(key, value any) bool {
		r.pending.Delete(key)
		value.(chan bool) <- false
		return true
	})
}

func (r *Relay) dropConn() {
	r.connMu.Lock()
	if r.conn != nil {
		_ = r.conn.Close()
		r.conn = nil
	}
	r.connMu.Unlock()
}

func (r *Relay) write(env envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	payload = append(payload, '\n')

	r.connMu.Lock()
	defer r.connMu.Unlock()
	if r.conn == nil {
		return ErrNotConnected
	}
	_, err = r.conn.Write(payload)
	return err
}

// Call sends a command and waits for the daemon to report success or
// failure. A failed command is not retried here, the caller surfaces the
// flag to the user.
func (r *Relay) Call(ctx context.Context, method string, params interface{}) (bool, error) {
	id := uuid.NewString()
	respCh := make(chan bool, 1)
	r.pending.Store(id, respCh)
	defer r.pending.Delete(id)

	err := r.write(envelope{ID: id, Method: method, Params: params})
	if err != nil {
		return false, err
	}

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case <-time.After(r.callTimeout):
		return false, ErrCallTimeout
	case ok := <-respCh:
		return ok, nil
	}
}
