// Copyright 2026 The DealRoom Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("info"))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}

func TestFanoutDeliversToAllHandlers(t *testing.T) {
	var a, b bytes.Buffer
	fanout := NewFanoutHandler(
		slog.NewJSONHandler(&a, nil),
		slog.NewJSONHandler(&b, nil),
	)

	log := slog.New(fanout)
	log.InfoContext(context.Background(), "tier resolved", slog.String("org_id", "org_a"))

	for _, buf := range []*bytes.Buffer{&a, &b} {
		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, "tier resolved", record["msg"])
		assert.Equal(t, "org_a", record["org_id"])
	}
}

func TestFanoutRespectsHandlerLevels(t *testing.T) {
	var quiet, chatty bytes.Buffer
	fanout := NewFanoutHandler(
		slog.NewJSONHandler(&quiet, &slog.HandlerOptions{Level: slog.LevelError}),
		slog.NewJSONHandler(&chatty, &slog.HandlerOptions{Level: slog.LevelDebug}),
	)

	slog.New(fanout).Debug("cache miss")

	assert.Zero(t, quiet.Len())
	assert.NotZero(t, chatty.Len())
}

func TestTraceContextHandlerWithoutSpanAddsNothing(t *testing.T) {
	var buf bytes.Buffer
	handler := &TraceContextHandler{Handler: slog.NewJSONHandler(&buf, nil)}

	slog.New(handler).InfoContext(context.Background(), "no span")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.NotContains(t, record, "trace_id")
	assert.NotContains(t, record, "span_id")
}
