package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/progate-hackathon-strawberry-flavor/gitris-engine/internal/api/middleware"
	"github.com/progate-hackathon-strawberry-flavor/gitris-engine/internal/services/tetris"
)

// BypassToken は BYPASS_AUTH が有効なときに WebSocket の認証メッセージで使えるトークンです。
const BypassToken = "BYPASS_AUTH"

// authTimeout は WebSocket 接続後に認証メッセージを待つ時間です。
const authTimeout = 10 * time.Second

// upgrader はHTTP接続をWebSocketプロトコルにアップグレードするための設定です。
// オリジンの制限は CORS ミドルウェアと認証メッセージに任せます。
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// GameHandler はゲーム関連のHTTPリクエスト（セッション作成、状態取得、終了、WebSocket接続）を処理します。
type GameHandler struct {
	sessionManager *tetris.SessionManager
	defaultLevel   int
	jwtSecret      string
	bypassAuth     bool
}

// NewGameHandler は新しい GameHandler インスタンスを作成します。
//
// Parameters:
//
//	sm           : セッションマネージャーへのポインタ
//	defaultLevel : リクエストでレベルが指定されなかったときの開始レベル
//	jwtSecret    : WebSocket の認証メッセージを検証するための秘密鍵
//	bypassAuth   : true なら BypassToken での接続を許可する
//
// Returns:
//
//	*GameHandler: 新しく作成された GameHandler のポインタ
func NewGameHandler(sm *tetris.SessionManager, defaultLevel int, jwtSecret string, bypassAuth bool) *GameHandler {
	return &GameHandler{
		sessionManager: sm,
		defaultLevel:   defaultLevel,
		jwtSecret:      jwtSecret,
		bypassAuth:     bypassAuth,
	}
}

// WriteErrorResponse はエラーレスポンスをJSON形式で書き込みます。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// WriteJSONResponse はJSONレスポンスを書き込みます。
func WriteJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeSessionError はセッション操作のエラーを適切なステータスコードに変換します。
func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, tetris.ErrSessionNotFound):
		WriteErrorResponse(w, http.StatusNotFound, "指定されたセッションは見つかりませんでした")
	case errors.Is(err, tetris.ErrNotSessionOwner):
		WriteErrorResponse(w, http.StatusForbidden, "このセッションを操作する権限がありません")
	case errors.Is(err, tetris.ErrSessionFinished):
		WriteErrorResponse(w, http.StatusConflict, "セッションは既に終了しています")
	default:
		WriteErrorResponse(w, http.StatusInternalServerError, err.Error())
	}
}

// CreateSession は新しいゲームセッションを作成するためのHTTPハンドラーです。
// リクエストボディ（省略可）: {"seed": 42, "level": 1}
func (h *GameHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	userID, err := ExtractUserIDFromContext(r)
	if err != nil {
		WriteErrorResponse(w, http.StatusUnauthorized, err.Error())
		return
	}

	var req struct {
		Seed  *uint64 `json:"seed"`
		Level *int    `json:"level"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		WriteErrorResponse(w, http.StatusBadRequest, "リクエストボディのパースに失敗しました")
		return
	}

	level := h.defaultLevel
	if req.Level != nil {
		level = *req.Level
	}
	if level < 1 {
		WriteErrorResponse(w, http.StatusBadRequest, "レベルは1以上である必要があります")
		return
	}

	info, err := h.sessionManager.CreateSession(userID, req.Seed, level)
	if err != nil {
		log.Printf("[GameHandler] Failed to create session for user %s: %v", userID, err)
		WriteErrorResponse(w, http.StatusInternalServerError, "セッションの作成に失敗しました")
		return
	}

	WriteJSONResponse(w, http.StatusCreated, info)
}

// GetSession は特定のセッションの最新のスナップショットを返すハンドラーです。
func (h *GameHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionID"]

	snapshot, err := h.sessionManager.Snapshot(sessionID)
	if err != nil {
		writeSessionError(w, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, snapshot)
}

// EndSession はセッションの持ち主がゲームを終了させるハンドラーです。
func (h *GameHandler) EndSession(w http.ResponseWriter, r *http.Request) {
	userID, err := ExtractUserIDFromContext(r)
	if err != nil {
		WriteErrorResponse(w, http.StatusUnauthorized, err.Error())
		return
	}
	sessionID := mux.Vars(r)["sessionID"]

	if err := h.sessionManager.EndSession(sessionID, userID); err != nil {
		writeSessionError(w, err)
		return
	}
	WriteJSONResponse(w, http.StatusOK, map[string]string{"session_id": sessionID, "message": "セッションを終了しました"})
}

// authMessage は WebSocket 接続後に最初に送られる認証メッセージです。
type authMessage struct {
	Type   string `json:"type"`
	Token  string `json:"token"`
	UserID string `json:"user_id,omitempty"` // BYPASS_AUTH 時のみ使う
}

// authenticate は認証メッセージを検証してユーザーIDを返します。
func (h *GameHandler) authenticate(msg authMessage) (string, error) {
	if msg.Type != "auth" {
		return "", errors.New("expected auth message")
	}
	if msg.Token == BypassToken {
		if !h.bypassAuth {
			return "", errors.New("bypass authentication is disabled")
		}
		if msg.UserID != "" {
			return msg.UserID, nil
		}
		return uuid.New().String(), nil
	}
	return middleware.ParseUserID(msg.Token, h.jwtSecret)
}

// HandleWebSocketConnection はHTTP接続をWebSocketプロトコルにアップグレードし、
// 認証メッセージを確認したあと接続をセッションマネージャーに引き渡します。
func (h *GameHandler) HandleWebSocketConnection(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionID"]
	if _, err := h.sessionManager.Info(sessionID); err != nil {
		writeSessionError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[GameHandler] Failed to upgrade to websocket for session %s: %v", sessionID, err)
		return
	}

	conn.SetReadDeadline(time.Now().Add(authTimeout))
	var msg authMessage
	if err := conn.ReadJSON(&msg); err != nil {
		log.Printf("[GameHandler] Failed to read auth message: %v", err)
		conn.Close()
		return
	}

	userID, err := h.authenticate(msg)
	if err != nil {
		log.Printf("[GameHandler] WebSocket auth failed for session %s: %v", sessionID, err)
		conn.WriteJSON(map[string]string{"error": err.Error()})
		conn.Close()
		return
	}
	conn.SetReadDeadline(time.Time{})
	conn.WriteJSON(map[string]string{"type": "auth_success", "user_id": userID})

	// RegisterClient 内で readPump と writePump が開始される
	if err := h.sessionManager.RegisterClient(sessionID, userID, conn); err != nil {
		log.Printf("[GameHandler] Failed to register client %s to session %s: %v", userID, sessionID, err)
		conn.Close()
		return
	}
	log.Printf("[GameHandler] WebSocket connected for user %s in session %s", userID, sessionID)
}

// NewRouter はAPIのルーティングを組み立てます。
// セッションの REST エンドポイントには auth を適用します。WebSocket は認証メッセージで認証します。
func NewRouter(game *GameHandler, status *StatusHandler, auth mux.MiddlewareFunc) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/public", PublicHandlerFunc).Methods("GET")
	r.HandleFunc("/api/status", status.GetStatus).Methods("GET")
	r.HandleFunc("/api/sessions/{sessionID}/ws", game.HandleWebSocketConnection).Methods("GET")

	protected := r.PathPrefix("/api/sessions").Subrouter()
	protected.Use(auth)
	protected.HandleFunc("", game.CreateSession).Methods("POST")
	protected.HandleFunc("/{sessionID}", game.GetSession).Methods("GET")
	protected.HandleFunc("/{sessionID}", game.EndSession).Methods("DELETE")
	return r
}
