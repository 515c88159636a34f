package chat

import (
	"context"
	"errors"
	"net"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// EinoModel adapts an Eino chat model to Model. Each call initialises the
// callback manager so globally registered handlers (Langfuse) observe it.
type EinoModel struct {
	model model.BaseChatModel
	name  string
}

// NewEinoModel wraps m. name labels the model in callback run info.
func NewEinoModel(m model.BaseChatModel, name string) *EinoModel {
	return &EinoModel{model: m, name: name}
}

// Complete converts messages to Eino schema messages and returns the
// generated content.
func (e *EinoModel) Complete(ctx context.Context, messages []Message) (string, error) {
	ctx = callbacks.InitCallbacks(ctx, &callbacks.RunInfo{
		Name:      "climatetrack-chat",
		Type:      e.name,
		Component: components.ComponentOfChatModel,
	})

	in := make([]*schema.Message, 0, len(messages))
	for _, m := range messages {
		in = append(in, toSchema(m))
	}

	out, err := e.model.Generate(ctx, in)
	if err != nil {
		return "", classifyEino(err)
	}
	if out == nil {
		return "", &Error{Kind: ErrProtocol, Err: errors.New("model returned no message")}
	}
	return out.Content, nil
}

func toSchema(m Message) *schema.Message {
	role := schema.User
	switch m.Role {
	case RoleSystem:
		role = schema.System
	case RoleAssistant:
		role = schema.Assistant
	}
	return &schema.Message{Role: role, Content: m.Content}
}

// classifyEino maps provider errors onto the chat kinds. Eino backends do not
// share an error type, so anything that is not a transport failure is
// reported as a status failure from the provider API.
func classifyEino(err error) error {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.As(err, &netErr) {
		return &Error{Kind: ErrNetwork, Err: err}
	}
	return &Error{Kind: ErrStatus, Err: err}
}
