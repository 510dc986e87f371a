package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/pagehook/internal/dom"
	"github.com/GriffinCanCode/pagehook/internal/host"
	"github.com/GriffinCanCode/pagehook/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/pagehook/internal/shared/id"
)

// Message types on the page websocket.
const (
	MsgChooseFiles      = "choose_files"
	MsgConfirm          = "confirm"
	MsgAlert            = "alert"
	MsgNavigate         = "navigate"
	MsgReload           = "reload"
	MsgLoadInBackground = "load_in_background"
	MsgSave             = "save"
	MsgAnswer           = "answer"
	MsgPing             = "ping"
	MsgPong             = "pong"
	MsgError            = "error"
)

// DefaultSaveTimeout bounds the wait for the shell to acknowledge a save.
const DefaultSaveTimeout = 30 * time.Second

var errSaveRejected = errors.New("shell rejected save")

// Message is one frame on the page websocket. Prompts carry an id the shell
// echoes in its answer.
type Message struct {
	Type string      `json:"type"`
	ID   id.PromptID `json:"id,omitempty"`

	URL      string `json:"url,omitempty"`
	Message  string `json:"message,omitempty"`
	Accept   string `json:"accept,omitempty"`
	Multiple bool   `json:"multiple,omitempty"`

	Filename    string `json:"filename,omitempty"`
	ObjectURL   string `json:"object_url,omitempty"`
	BlobPath    string `json:"blob_path,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Size        int    `json:"size,omitempty"`

	Files     []string `json:"files,omitempty"`
	Confirmed bool     `json:"confirmed,omitempty"`
	Cancelled bool     `json:"cancelled,omitempty"`
	Error     string   `json:"error,omitempty"`

	Timestamp int64 `json:"timestamp,omitempty"`
}

type prompt struct {
	msg    Message
	answer chan Message
}

// RemoteHost is the host shell of a page reached over a websocket. Prompts
// issued while no shell is connected are sent when one attaches, and
// notifications are queued in order.
type RemoteHost struct {
	blobPath    func(ref string) string
	saveTimeout time.Duration
	metrics     *monitoring.Metrics
	log         *zap.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	outbox  []Message
	pending map[id.PromptID]*prompt
	order   []id.PromptID
}

var _ host.Shell = (*RemoteHost)(nil)

// NewRemoteHost creates a disconnected host. blobPath maps an object URL to
// the path the shell fetches it from.
func NewRemoteHost(blobPath func(ref string) string, metrics *monitoring.Metrics, logger *zap.Logger) *RemoteHost {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RemoteHost{
		blobPath:    blobPath,
		saveTimeout: DefaultSaveTimeout,
		metrics:     metrics,
		log:         logger,
		pending:     make(map[id.PromptID]*prompt),
	}
}

// Connected reports whether a shell is attached.
func (h *RemoteHost) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conn != nil
}

// Pending returns the number of unanswered prompts.
func (h *RemoteHost) Pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pending)
}

// Serve attaches conn and reads answers until the connection fails or ctx
// is done. A newer connection replaces an older one.
func (h *RemoteHost) Serve(ctx context.Context, conn *websocket.Conn) {
	h.attach(conn)
	h.metrics.IncWSConnections()
	defer h.metrics.DecWSConnections()
	defer h.detach(conn)

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug("websocket read ended", zap.Error(err))
			}
			return
		}
		h.metrics.RecordWSMessage("in", msg.Type)

		switch msg.Type {
		case MsgAnswer:
			h.deliver(msg)
		case MsgPing:
			h.send(Message{Type: MsgPong})
		default:
			h.send(Message{Type: MsgError, Message: "unknown message type: " + msg.Type})
		}
	}
}

func (h *RemoteHost) attach(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.conn != nil {
		_ = h.conn.Close()
	}
	h.conn = conn
	h.log.Info("shell connected", zap.Int("queued", len(h.outbox)), zap.Int("prompts", len(h.pending)))

	queued := h.outbox
	h.outbox = nil
	for _, msg := range queued {
		h.writeLocked(msg)
	}
	for _, pid := range h.order {
		h.writeLocked(h.pending[pid].msg)
	}
}

func (h *RemoteHost) detach(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn == conn {
		h.conn = nil
		h.log.Info("shell disconnected")
	}
	_ = conn.Close()
}

func (h *RemoteHost) send(msg Message) {
	msg.Timestamp = time.Now().Unix()

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn == nil {
		h.outbox = append(h.outbox, msg)
		return
	}
	h.writeLocked(msg)
}

func (h *RemoteHost) writeLocked(msg Message) {
	if err := h.conn.WriteJSON(msg); err != nil {
		h.log.Warn("websocket write failed", zap.String("type", msg.Type), zap.Error(err))
		return
	}
	h.metrics.RecordWSMessage("out", msg.Type)
}

// ask sends a prompt and waits for its answer.
func (h *RemoteHost) ask(ctx context.Context, msg Message) (Message, error) {
	msg.ID = id.NewPromptID()
	msg.Timestamp = time.Now().Unix()
	p := &prompt{msg: msg, answer: make(chan Message, 1)}

	h.mu.Lock()
	h.pending[msg.ID] = p
	h.order = append(h.order, msg.ID)
	if h.conn != nil {
		h.writeLocked(msg)
	}
	h.mu.Unlock()

	defer h.forget(msg.ID)

	select {
	case ans := <-p.answer:
		return ans, nil
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

func (h *RemoteHost) deliver(ans Message) {
	h.mu.Lock()
	p, ok := h.pending[ans.ID]
	h.mu.Unlock()

	if !ok {
		h.log.Debug("answer for unknown prompt", zap.String("id", ans.ID.String()))
		return
	}
	select {
	case p.answer <- ans:
	default:
	}
}

func (h *RemoteHost) forget(pid id.PromptID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.pending, pid)
	for i, o := range h.order {
		if o == pid {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
}

// ChooseFiles implements host.Dialogs. The shell answers with paths on the
// local disk.
func (h *RemoteHost) ChooseFiles(ctx context.Context, opts host.ChooseOptions) ([]dom.File, error) {
	ans, err := h.ask(ctx, Message{Type: MsgChooseFiles, Accept: opts.Accept, Multiple: opts.Multiple})
	if err != nil {
		return nil, err
	}
	if ans.Error != "" {
		return nil, fmt.Errorf("file chooser: %s", ans.Error)
	}
	if ans.Cancelled {
		return []dom.File{}, nil
	}

	files := make([]dom.File, 0, len(ans.Files))
	for _, p := range ans.Files {
		f, err := dom.FileFromPath(p)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

// Confirm implements host.Dialogs. An abandoned prompt counts as declined.
func (h *RemoteHost) Confirm(ctx context.Context, message string) bool {
	ans, err := h.ask(ctx, Message{Type: MsgConfirm, Message: message})
	if err != nil {
		h.log.Debug("confirm abandoned", zap.Error(err))
		return false
	}
	return ans.Confirmed
}

// Alert implements host.Dialogs.
func (h *RemoteHost) Alert(_ context.Context, message string) {
	h.send(Message{Type: MsgAlert, Message: message})
}

// Navigate implements host.Navigator.
func (h *RemoteHost) Navigate(url string) {
	h.send(Message{Type: MsgNavigate, URL: url})
}

// Reload implements host.Navigator.
func (h *RemoteHost) Reload() {
	h.send(Message{Type: MsgReload})
}

// LoadInBackground implements host.Navigator.
func (h *RemoteHost) LoadInBackground(url string) {
	h.send(Message{Type: MsgLoadInBackground, URL: url})
}

// SaveAs implements host.Saver. The shell fetches the blob from BlobPath and
// acknowledges once it has it.
func (h *RemoteHost) SaveAs(ctx context.Context, req host.SaveRequest) error {
	ctx, cancel := context.WithTimeout(ctx, h.saveTimeout)
	defer cancel()

	ans, err := h.ask(ctx, Message{
		Type:        MsgSave,
		Filename:    req.Filename,
		ObjectURL:   req.ObjectURL,
		BlobPath:    h.blobPath(req.ObjectURL),
		ContentType: req.Blob.Type,
		Size:        len(req.Blob.Data),
	})
	if err != nil {
		return fmt.Errorf("save %s: %w", req.Filename, err)
	}
	if ans.Error != "" {
		return fmt.Errorf("save %s: %w: %s", req.Filename, errSaveRejected, ans.Error)
	}
	return nil
}

// Close drops the shell connection. Queued messages are kept.
func (h *RemoteHost) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn != nil {
		_ = h.conn.Close()
		h.conn = nil
	}
}
