package handlers

import (
	"fmt"
	"net/http"

	"github.com/progate-hackathon-strawberry-flavor/gitris-engine/internal/api/middleware"
)

// ExtractUserIDFromContext はリクエストのコンテキストからユーザーIDを抽出します。
// AuthMiddleware を通ったリクエストでのみ成功します。
func ExtractUserIDFromContext(r *http.Request) (string, error) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		return "", fmt.Errorf("ユーザーIDがコンテキストに見つかりません")
	}
	return userID, nil
}
