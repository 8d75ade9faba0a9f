package httpserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/sofiavldd2005/gs-dashboard-experiment/internal/domain"
	apperrors "github.com/sofiavldd2005/gs-dashboard-experiment/internal/platform/errors"
)

const ingestReply = "Data Received"

var errTrailingData = errors.New("unexpected data after telemetry sample")

// handleIngest publishes one telemetry sample to every connected viewer.
// The body is JSON unless the Content-Type names MessagePack.
func (s *Server) handleIngest(c echo.Context) error {
	if s.telemetry.Closed() {
		return apperrors.UnavailableError("telemetry hub closed", domain.ErrHubClosed)
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return apperrors.ValidationError("failed to read telemetry", err)
	}

	sample, err := decodeTelemetry(c.Request().Header.Get(echo.HeaderContentType), body)
	if err != nil {
		return apperrors.ValidationError("malformed telemetry", err)
	}

	receivers := s.telemetry.Publish(sample)
	slog.DebugContext(c.Request().Context(), "Telemetry published", "receivers", receivers, "state", sample.State)

	if err := c.String(http.StatusOK, ingestReply); err != nil {
		return fmt.Errorf("failed to send ingest reply: %w", err)
	}
	return nil
}

func decodeTelemetry(contentType string, body []byte) (domain.Telemetry, error) {
	var sample domain.Telemetry

	mediaType, _, _ := mime.ParseMediaType(contentType)
	switch mediaType {
	case "application/msgpack", "application/x-msgpack", "application/vnd.msgpack":
		r := bytes.NewReader(body)
		if err := msgpack.NewDecoder(r).Decode(&sample); err != nil {
			return domain.Telemetry{}, fmt.Errorf("decode msgpack: %w", err)
		}
		// bytes.Reader is an io.ByteScanner, so the decoder reads it unbuffered.
		if r.Len() > 0 {
			return domain.Telemetry{}, errTrailingData
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(body))
		if err := dec.Decode(&sample); err != nil {
			return domain.Telemetry{}, fmt.Errorf("decode json: %w", err)
		}
		if dec.More() {
			return domain.Telemetry{}, errTrailingData
		}
	}
	return sample, nil
}
