// Package handler implements the inbound messaging endpoint
// POST /api/messages.
//
// ============================================================
// TURN CONTRACT
// ============================================================
//
//	message activity     → 200 {"replies":[...]}
//	any other activity   → 202, empty body
//	malformed JSON       → 400 {"error": "..."}
//	error during a turn  → 200 with one reply carrying the error text
//
// The last rule keeps the conversation alive on the client side: the
// user sees what went wrong and the stored session still points at the
// last committed step, so the next message retries it.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/boddenberg/sellernotes-bot-go/internal/chat/domain"
	"github.com/boddenberg/sellernotes-bot-go/internal/chat/service"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("chat/handler")

// MessagesHandler returns the http.HandlerFunc for POST /api/messages.
//
// Request:
//
//	{"type":"message","id":"a1","channelId":"emulator",
//	 "from":{"id":"u1"},"conversation":{"id":"c1"},"text":"1"}
//
// Response (200 OK):
//
//	{"replies":[{"id":"...","type":"message","text":"...","replyToId":"a1","locale":"cs-CZ"}]}
func MessagesHandler(chatSvc *service.ChatService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /api/messages")
		defer span.End()

		var act domain.Activity
		if err := json.NewDecoder(r.Body).Decode(&act); err != nil {
			writeError(w, http.StatusBadRequest, "invalid activity body")
			return
		}
		span.SetAttributes(
			attribute.String("activity.type", act.Type),
			attribute.String("activity.channel", act.ChannelID),
		)

		if act.Kind() == domain.ActivityMessage {
			if act.From.ID == "" || act.ChannelID == "" {
				writeError(w, http.StatusBadRequest, "channelId and from.id are required")
				return
			}
			// the bot only speaks Czech
			act.Locale = domain.DefaultLocale
		}

		resp, err := chatSvc.ProcessActivity(ctx, &act)
		if err != nil {
			logger.Error("turn failed",
				zap.String("channel", act.ChannelID),
				zap.String("user", act.From.ID),
				zap.Error(err),
			)
			writeJSON(w, http.StatusOK, errorTurn(&act, err))
			return
		}
		if resp == nil {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// errorTurn echoes err back to the user as a single reply.
func errorTurn(act *domain.Activity, err error) *domain.TurnResponse {
	return &domain.TurnResponse{Replies: []domain.Reply{{
		ID:        uuid.NewString(),
		Type:      string(domain.ActivityMessage),
		Text:      err.Error(),
		ReplyToID: act.ID,
		Locale:    domain.DefaultLocale,
	}}}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
