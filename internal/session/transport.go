package session

import (
	"encoding/json"
	"time"

	"github.com/sofiavldd2005/gs-dashboard-experiment/internal/domain"
)

// Transport is the duplex message stream of one viewer. *websocket.Conn satisfies it.
//
// At most one goroutine may read and one may write at a time; WriteControl and Close may be called concurrently.
type Transport interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

// Encoder serializes one sample into one outbound text message.
type Encoder func(sample domain.Telemetry) ([]byte, error)

// JSONEncoder writes the sample with the same field set and order it was ingested with.
func JSONEncoder(sample domain.Telemetry) ([]byte, error) {
	return json.Marshal(sample)
}
