package tetris

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/progate-hackathon-strawberry-flavor/gitris-engine/internal/models/tetris"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionFinished = errors.New("session already finished")
	ErrNotSessionOwner = errors.New("user does not own the session")
	ErrManagerStopped  = errors.New("session manager is shut down")
)

const (
	inputQueueSize = 512               // セッションごとの入力キューの長さ
	sendBufferSize = 512               // クライアントごとの送信バッファ
	writeWait      = 10 * time.Second  // 1回の書き込みのタイムアウト
	pongWait       = 300 * time.Second // Pong が来ない場合に切断するまでの時間
	pingPeriod     = 60 * time.Second  // Ping の送信間隔
	maxMessageSize = 1024              // クライアントから受け取るメッセージの上限
)

// Client はWebSocket接続を持つ単一のクライアントを表します。
type Client struct {
	UserID    string          // このクライアントに紐づくユーザーのID
	SessionID string          // 接続先のセッションID
	Conn      *websocket.Conn // クライアントとの実際のWebSocketコネクション
	Send      chan []byte     // クライアントへメッセージを送信するためのバッファ付きチャネル
	inputs    chan<- Action   // 操作の送り先。セッションの持ち主以外（観戦者）は nil
	closed    bool            // チャネルが閉じられたかどうかのフラグ
	mu        sync.Mutex      // closedフラグ保護用
}

// SafeSend は安全にチャネルにメッセージを送信します（closedチェック付き）
func (c *Client) SafeSend(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.Send <- message:
		return true
	default:
		return false // チャネルがフル
	}
}

// SafeClose は安全にチャネルを閉じます
func (c *Client) SafeClose() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.Send)
		c.closed = true
	}
}

func (c *Client) key() string {
	return c.SessionID + "/" + c.UserID
}

// SessionInfo は作成したセッションの情報です。シードと開始レベルがあれば同じゲームを再現できます。
type SessionInfo struct {
	ID        string    `json:"session_id"`
	OwnerID   string    `json:"owner_id"`
	Seed      uint64    `json:"seed"`
	Level     int       `json:"level"`
	CreatedAt time.Time `json:"created_at"`
}

// StateMessage はクライアントに送るゲーム状態のメッセージです。
type StateMessage struct {
	Type      string          `json:"type"` // "state" または最後の1回だけ "game_over"
	SessionID string          `json:"session_id"`
	State     tetris.Snapshot `json:"state"`
}

type snapshotEvent struct {
	SessionID string
	Snapshot  tetris.Snapshot
}

// hostedSession はサーバー上で動いている1つのゲームです。
type hostedSession struct {
	SessionInfo
	session *Session
	inputs  chan Action
	cancel  context.CancelFunc
	done    chan struct{}

	mu       sync.RWMutex
	last     tetris.Snapshot
	finished bool
}

func (h *hostedSession) setSnapshot(s tetris.Snapshot) {
	h.mu.Lock()
	h.last = s
	h.mu.Unlock()
}

func (h *hostedSession) snapshot() tetris.Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.last
}

// SessionManager はサーバー上のゲームセッションとWebSocketクライアント接続の全体を管理します。
// 各セッションは自分のゴルーチンで Session.Run を実行し、
// SessionManager のメインループは接続の登録・解除とスナップショットの配信を担当します。
type SessionManager struct {
	settings   Settings
	sessions   map[string]*hostedSession // sessionID -> セッション
	clients    map[string]*Client        // sessionID/userID -> クライアント
	register   chan *Client
	unregister chan *Client
	broadcast  chan *snapshotEvent
	quit       chan struct{}
	quitOnce   sync.Once
	mu         sync.RWMutex // sessions と clients マップへのアクセスを保護する
}

// NewSessionManager は新しい SessionManager を作成し、そのメインイベントループをバックグラウンドで開始します。
//
// Parameters:
//
//	settings : 各セッションで使う速度設定
//
// Returns:
//
//	*SessionManager: 初期化されたセッションマネージャーのポインタ
func NewSessionManager(settings Settings) *SessionManager {
	sm := &SessionManager{
		settings:   settings,
		sessions:   make(map[string]*hostedSession),
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *snapshotEvent, 512),
		quit:       make(chan struct{}),
	}
	go sm.Run()
	return sm
}

// Run は SessionManager のメインイベントループです。
func (sm *SessionManager) Run() {
	for {
		select {
		case client := <-sm.register:
			sm.mu.Lock()
			hosted, ok := sm.sessions[client.SessionID]
			if !ok {
				sm.mu.Unlock()
				log.Printf("[SessionManager] Session %s is gone, closing client %s", client.SessionID, client.UserID)
				client.SafeClose()
				continue
			}
			if existing, exists := sm.clients[client.key()]; exists && existing != client {
				log.Printf("[SessionManager] Replacing existing connection for user %s in session %s", client.UserID, client.SessionID)
				existing.SafeClose()
			}
			sm.clients[client.key()] = client
			sm.mu.Unlock()
			log.Printf("[SessionManager] Client registered: %s (Session: %s)", client.UserID, client.SessionID)

			// 接続直後に最新の状態を送る
			if msg, err := encodeState("state", client.SessionID, hosted.snapshot()); err == nil {
				client.SafeSend(msg)
			}

		case client := <-sm.unregister:
			sm.mu.Lock()
			if registered, ok := sm.clients[client.key()]; ok && registered == client {
				delete(sm.clients, client.key())
				log.Printf("[SessionManager] Client unregistered: %s (Session: %s)", client.UserID, client.SessionID)
			}
			sm.mu.Unlock()
			client.SafeClose()

		case event := <-sm.broadcast:
			msg, err := encodeState("state", event.SessionID, event.Snapshot)
			if err != nil {
				log.Printf("[SessionManager] Error marshaling snapshot for session %s: %v", event.SessionID, err)
				continue
			}
			sm.mu.RLock()
			for _, client := range sm.clients {
				if client.SessionID == event.SessionID && !client.SafeSend(msg) {
					log.Printf("[SessionManager] Failed to send to client %s (channel closed or full)", client.UserID)
				}
			}
			sm.mu.RUnlock()

		case <-sm.quit:
			log.Printf("[SessionManager] Shutdown signal received, leaving main loop")
			return
		}
	}
}

func encodeState(kind, sessionID string, snapshot tetris.Snapshot) ([]byte, error) {
	return json.Marshal(StateMessage{Type: kind, SessionID: sessionID, State: snapshot})
}

// CreateSession は新しいゲームセッションを作成し、すぐにゲームループを開始します。
//
// Parameters:
//
//	userID : セッションの持ち主
//	seed   : 乱数のシード。nil なら現在時刻から決める
//	level  : 開始レベル（1以上）
//
// Returns:
//
//	SessionInfo: 作成されたセッションの情報
//	error      : 開始レベルが不正な場合、またはマネージャーが停止している場合
func (sm *SessionManager) CreateSession(userID string, seed *uint64, level int) (SessionInfo, error) {
	if level < 1 {
		return SessionInfo{}, fmt.Errorf("invalid start level %d", level)
	}
	select {
	case <-sm.quit:
		return SessionInfo{}, ErrManagerStopped
	default:
	}

	var s uint64
	if seed != nil {
		s = *seed
	} else {
		s = uint64(time.Now().UnixNano())
	}

	ctx, cancel := context.WithCancel(context.Background())
	hosted := &hostedSession{
		SessionInfo: SessionInfo{
			ID:        uuid.New().String(),
			OwnerID:   userID,
			Seed:      s,
			Level:     level,
			CreatedAt: time.Now(),
		},
		session: NewSeededSession(s, level, sm.settings),
		inputs:  make(chan Action, inputQueueSize),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	hosted.last = hosted.session.Snapshot()

	sm.mu.Lock()
	sm.sessions[hosted.ID] = hosted
	sm.mu.Unlock()

	log.Printf("[SessionManager] Session %s created for user %s (seed=%d, level=%d)", hosted.ID, userID, s, level)
	go sm.runSession(ctx, hosted)
	return hosted.SessionInfo, nil
}

// runSession はセッションのゲームループを実行し、終わったら後片付けをします。
func (sm *SessionManager) runSession(ctx context.Context, hosted *hostedSession) {
	defer close(hosted.done)

	err := hosted.session.Run(ctx, hosted.inputs, func(s tetris.Snapshot) {
		hosted.setSnapshot(s)
		select {
		case sm.broadcast <- &snapshotEvent{SessionID: hosted.ID, Snapshot: s}:
		default:
			log.Printf("[SessionManager] Broadcast channel full, skipping update for session %s", hosted.ID)
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("[SessionManager] Session %s stopped with error: %v", hosted.ID, err)
	}
	sm.finishSession(hosted)
}

// finishSession は最後の状態を接続中のクライアントに送ってから切断し、セッションを削除します。
func (sm *SessionManager) finishSession(hosted *hostedSession) {
	final := hosted.session.Snapshot()
	hosted.mu.Lock()
	hosted.last = final
	hosted.finished = true
	hosted.mu.Unlock()

	msg, err := encodeState("game_over", hosted.ID, final)
	if err != nil {
		log.Printf("[SessionManager] Error marshaling final snapshot for session %s: %v", hosted.ID, err)
	}

	sm.mu.Lock()
	for key, client := range sm.clients {
		if client.SessionID != hosted.ID {
			continue
		}
		if msg != nil {
			client.SafeSend(msg)
		}
		client.SafeClose()
		delete(sm.clients, key)
	}
	delete(sm.sessions, hosted.ID)
	sm.mu.Unlock()

	log.Printf("[SessionManager] Session %s ended (score=%d, level=%d, lines=%d)",
		hosted.ID, final.Score, final.Level, final.LinesCleared)
}

func (sm *SessionManager) lookup(sessionID string) (*hostedSession, error) {
	sm.mu.RLock()
	hosted, ok := sm.sessions[sessionID]
	sm.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return hosted, nil
}

// Snapshot は指定されたセッションの最新の状態を返します。
func (sm *SessionManager) Snapshot(sessionID string) (tetris.Snapshot, error) {
	hosted, err := sm.lookup(sessionID)
	if err != nil {
		return tetris.Snapshot{}, err
	}
	return hosted.snapshot(), nil
}

// Info は指定されたセッションの作成時の情報を返します。
func (sm *SessionManager) Info(sessionID string) (SessionInfo, error) {
	hosted, err := sm.lookup(sessionID)
	if err != nil {
		return SessionInfo{}, err
	}
	return hosted.SessionInfo, nil
}

// SendAction はセッションの入力キューに操作を積みます。キューが満杯なら捨てて false を返します。
func (sm *SessionManager) SendAction(sessionID, userID string, action Action) (bool, error) {
	hosted, err := sm.lookup(sessionID)
	if err != nil {
		return false, err
	}
	if hosted.OwnerID != userID {
		return false, ErrNotSessionOwner
	}
	return enqueue(hosted.inputs, action, userID), nil
}

func enqueue(inputs chan<- Action, action Action, userID string) bool {
	select {
	case inputs <- action:
		return true
	default:
		log.Printf("[SessionManager] Input queue is full, dropping %s from user %s", action, userID)
		return false
	}
}

// EndSession はセッションの持ち主がゲームを途中で終了させます。後片付けが終わるまで待ちます。
func (sm *SessionManager) EndSession(sessionID, userID string) error {
	hosted, err := sm.lookup(sessionID)
	if err != nil {
		return err
	}
	if hosted.OwnerID != userID {
		return ErrNotSessionOwner
	}
	hosted.mu.RLock()
	finished := hosted.finished
	hosted.mu.RUnlock()
	if finished {
		return ErrSessionFinished
	}

	hosted.cancel()
	<-hosted.done
	return nil
}

// RegisterClient は WebSocket 接続をセッションに登録し、読み書きのゴルーチンを開始します。
// セッションの持ち主の接続だけが操作を送れます。それ以外のユーザーは観戦のみです。
func (sm *SessionManager) RegisterClient(sessionID, userID string, conn *websocket.Conn) error {
	hosted, err := sm.lookup(sessionID)
	if err != nil {
		return err
	}

	client := &Client{
		UserID:    userID,
		SessionID: sessionID,
		Conn:      conn,
		Send:      make(chan []byte, sendBufferSize),
	}
	if hosted.OwnerID == userID {
		client.inputs = hosted.inputs
	}

	select {
	case sm.register <- client:
	case <-sm.quit:
		return ErrManagerStopped
	}

	go sm.readPump(client)
	go client.writePump()
	return nil
}

// readPump はクライアントからの操作メッセージを読み込み、セッションの入力キューに送ります。
func (sm *SessionManager) readPump(client *Client) {
	defer func() {
		select {
		case sm.unregister <- client:
		case <-sm.quit:
			client.SafeClose()
		}
		client.Conn.Close()
	}()

	client.Conn.SetReadLimit(maxMessageSize)
	client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[SessionManager] WebSocket unexpected close error for user %s: %v", client.UserID, err)
			}
			return
		}

		var event PlayerInputEvent
		if err := json.Unmarshal(message, &event); err != nil {
			log.Printf("[SessionManager] Failed to unmarshal input message from %s: %v", client.UserID, err)
			continue
		}
		event.UserID = client.UserID

		if client.inputs == nil {
			continue
		}
		enqueue(client.inputs, event.Action, event.UserID)
	}
}

// writePump は Client の Send チャネルからのメッセージをWebSocketコネクションに書き込みます。
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// マネージャーがチャネルを閉じた
				c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[Client] Error writing message for user %s: %v", c.UserID, err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ActiveSessions は現在動いているセッションの数です。
func (sm *SessionManager) ActiveSessions() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// Shutdown はSessionManagerを安全にシャットダウンします。全てのセッションを止め、後片付けを待ちます。
func (sm *SessionManager) Shutdown() {
	log.Printf("[SessionManager] Shutting down...")
	sm.quitOnce.Do(func() { close(sm.quit) })

	sm.mu.RLock()
	running := make([]*hostedSession, 0, len(sm.sessions))
	for _, hosted := range sm.sessions {
		running = append(running, hosted)
	}
	sm.mu.RUnlock()

	for _, hosted := range running {
		hosted.cancel()
		<-hosted.done
	}

	sm.mu.Lock()
	for key, client := range sm.clients {
		client.SafeClose()
		delete(sm.clients, key)
	}
	sm.mu.Unlock()
	log.Printf("[SessionManager] Shutdown complete")
}
