package realtime

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Dialer establishes the duplex connection to the upstream speech service.
type Dialer interface {
	Dial(ctx context.Context, model string) (Conn, error)
}

// OpenAIDialer connects to the OpenAI realtime websocket endpoint.
type OpenAIDialer struct {
	URL    string // base websocket URL, without the model query parameter
	APIKey string
}

func (d *OpenAIDialer) Dial(ctx context.Context, model string) (Conn, error) {
	url := fmt.Sprintf("%s?model=%s", d.URL, model)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+d.APIKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("connect upstream: %w (status %s)", err, resp.Status)
		}
		return nil, fmt.Errorf("connect upstream: %w", err)
	}
	return conn, nil
}

var _ Dialer = (*OpenAIDialer)(nil)
