package main

import (
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browsers cannot set an Authorization header on websocket dials, so
	// the token travels as a query parameter and origins are not filtered
	// here; auth is the gate.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHandler attaches a live notification socket. The connection stays in
// the hub until the peer closes it or a read fails.
func (s *Service) WSHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userIDFromToken(r.URL.Query().Get("token"))
	if !ok {
		http.Error(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("ws upgrade failed", zap.Error(err))
		return
	}

	c := s.hub.Add(userID, conn)
	defer s.hub.Remove(c)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Service) userIDFromToken(tokenString string) (string, bool) {
	if tokenString == "" {
		return "", false
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return "", false
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", false
	}
	sub, _ := claims["sub"].(string)
	return sub, sub != ""
}
