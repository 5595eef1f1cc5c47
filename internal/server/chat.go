package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ynterhq/gateway/internal/gate"
	"github.com/ynterhq/gateway/internal/observability/logger"
	"github.com/ynterhq/gateway/internal/providers/chat"
	"github.com/ynterhq/gateway/internal/tokencount"
)

type chatRequest struct {
	Schema   string         `json:"schema"`
	Version  string         `json:"version"`
	Stream   bool           `json:"stream"`
	UseTools bool           `json:"useTools"`
	Messages []chat.Message `json:"messages"`
}

// HandleChat admits the conversation through the gate and relays the
// completion, streamed or not, straight from the upstream model API.
func (s *Server) HandleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if len(req.Messages) == 0 {
		AbortWithError(c, newValidationError("messages", "invalid_messages", "messages must not be empty"))
		return
	}

	tools := chat.Tools(req.Version, req.Schema)

	costMessages := make([]tokencount.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		costMessages = append(costMessages, tokencount.Message{Role: m.Role, Content: m.Content, Name: m.Name})
	}
	cost, err := tokencount.RequestCost(s.counter, chat.SystemPrompt, tools, costMessages)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	admission, err := s.gate.Admit(c.Request.Context(), gate.Request{
		Credential: bearerCredential(c),
		Operation:  "chat",
		Cost:       cost,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	completion := chat.CompletionRequest{
		Model:       s.chatProvider.Model(),
		Messages:    append(req.Messages, chat.Message{Role: "system", Content: chat.SystemPrompt}),
		Stream:      req.Stream,
		MaxTokens:   s.chatProvider.MaxTokens(),
		Temperature: 0,
	}
	if req.UseTools {
		completion.Tools = tools
	}

	resp, err := s.chatProvider.Complete(c.Request.Context(), completion)
	if err != nil {
		logger.FromContext(c.Request.Context()).Error("chat relay failed",
			zap.String("account_id", admission.Account.ID),
			zap.Error(err),
		)
		AbortWithError(c, ErrInternal)
		return
	}
	defer resp.Body.Close()

	relayResponse(c, resp)
}

// relayResponse copies the upstream response through as-is, flushing per
// chunk so SSE completions reach the client as they arrive.
func relayResponse(c *gin.Context, resp *http.Response) {
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		c.Header("Content-Type", ct)
	}
	c.Status(resp.StatusCode)

	buf := make([]byte, 32*1024)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := c.Writer.Write(buf[:n]); werr != nil {
				return
			}
			c.Writer.Flush()
		}
		if err != nil {
			return
		}
	}
}
