// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keygate Contributors

package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/keygate/keygate/internal/logging"
)

func TestSetup(t *testing.T) {
	t.Run("json output includes service and version", func(t *testing.T) {
		var buf bytes.Buffer
		logger := logging.Setup("keygate", "1.2.3", "json", &buf)

		logger.Info("hello")

		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, "keygate", record["service"])
		assert.Equal(t, "1.2.3", record["version"])
		assert.Equal(t, "hello", record["msg"])
	})

	t.Run("text format produces non-json output", func(t *testing.T) {
		var buf bytes.Buffer
		logger := logging.Setup("keygate", "dev", "text", &buf)

		logger.Info("hello")

		assert.Contains(t, buf.String(), "msg=hello")
	})

	t.Run("includes trace context when present", func(t *testing.T) {
		var buf bytes.Buffer
		logger := logging.Setup("keygate", "dev", "json", &buf)

		traceID := trace.TraceID{0x01}
		spanID := trace.SpanID{0x02}
		spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
			TraceID: traceID,
			SpanID:  spanID,
		})
		ctx := trace.ContextWithSpanContext(context.Background(), spanCtx)

		logger.InfoContext(ctx, "traced")

		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, traceID.String(), record["trace_id"])
		assert.Equal(t, spanID.String(), record["span_id"])
	})

	t.Run("omits trace context when absent", func(t *testing.T) {
		var buf bytes.Buffer
		logger := logging.Setup("keygate", "dev", "json", &buf)

		logger.Info("untraced")

		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.NotContains(t, record, "trace_id")
		assert.NotContains(t, record, "span_id")
	})

	t.Run("with attrs preserves wrapping", func(t *testing.T) {
		var buf bytes.Buffer
		logger := logging.Setup("keygate", "dev", "json", &buf)

		logger.With("component", "dispatcher").Info("attributed")

		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, "dispatcher", record["component"])
		assert.Equal(t, "keygate", record["service"])
	})
}
