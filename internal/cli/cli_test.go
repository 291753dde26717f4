// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/claude-chat/internal/anthropic"
	"github.com/jeranaias/claude-chat/internal/config"
	"github.com/jeranaias/claude-chat/internal/session"
	"github.com/jeranaias/claude-chat/internal/telemetry"
)

const testAPIKey = "sk-ant-REDACTED"

// =============================================================================
// TEST HELPERS
// =============================================================================

// fakeAPI is a Messages API stand-in that records every request.
type fakeAPI struct {
	mu       sync.Mutex
	requests []anthropic.MessageRequest
	status   int
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req anthropic.MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.requests = append(f.requests, req)
	status := f.status
	f.mu.Unlock()

	w.Header().Set("content-type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
		fmt.Fprint(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
		return
	}

	text := "Reply to: " + req.Messages[len(req.Messages)-1].Content
	if req.MaxTokens == 30 {
		text = "Test-Chat-Log"
	}
	json.NewEncoder(w).Encode(anthropic.MessageResponse{
		ID:         "msg_test",
		Type:       "message",
		Role:       anthropic.RoleAssistant,
		Model:      req.Model,
		Content:    []anthropic.ContentBlock{{Type: "text", Text: text}},
		StopReason: "end_turn",
		Usage:      anthropic.Usage{InputTokens: 12, OutputTokens: 34},
	})
}

func (f *fakeAPI) Requests() []anthropic.MessageRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]anthropic.MessageRequest(nil), f.requests...)
}

// testEnv is an isolated home, config file and API server.
type testEnv struct {
	dir        string
	configPath string
	api        *fakeAPI
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("ANTHROPIC_API_KEY", testAPIKey)

	api := &fakeAPI{}
	server := httptest.NewServer(api)
	t.Cleanup(server.Close)

	configPath := filepath.Join(dir, "config.toml")
	contents := fmt.Sprintf(`[api]
base_url = %q
max_retries = 0

[history]
dir = %q

[logging]
level = "debug"
file = %q

[telemetry]
dir = %q
usage_db = %q
`, server.URL,
		filepath.Join(dir, "history"),
		filepath.Join(dir, "logs", "claude-chat.log"),
		filepath.Join(dir, "telemetry"),
		filepath.Join(dir, "usage.db"))
	require.NoError(t, os.WriteFile(configPath, []byte(contents), 0600))

	return &testEnv{dir: dir, configPath: configPath, api: api}
}

// run executes the command tree with the given stdin and returns stdout.
func (e *testEnv) run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer

	cmd := NewRootCommand()
	cmd.SetArgs(append(args, "--config", e.configPath))
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)

	err := cmd.ExecuteContext(context.Background())
	if err != nil {
		DisplayError(&stderr, err)
	}
	return stdout.String(), stderr.String(), err
}

// =============================================================================
// ONE-SHOT AND CONVERSATION
// =============================================================================

func TestAsk_OneShot(t *testing.T) {
	env := newTestEnv(t)

	out, _, err := env.run(t, "n\n", "--no-typewriter", "-s", "What", "is", "Go?")
	require.NoError(t, err)

	want := "What is Go?\n\nAdditional instructions: Please keep your response to one paragraph or less."
	assert.Contains(t, out, "PROMPT:\n\n"+want+"\n")
	assert.Contains(t, out, "CLAUDE'S RESPONSE:\n\nReply to: "+want+"\n")
	assert.Contains(t, out, session.MsgContinuePrompt)
	assert.NotContains(t, out, session.MsgConversationStarted)

	reqs := env.api.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, config.DefaultFastModel, reqs[0].Model)
	assert.Equal(t, config.DefaultMaxTokens, reqs[0].MaxTokens)
	assert.Equal(t, want, reqs[0].Messages[0].Content)
}

func TestAsk_RecordsUsage(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.run(t, "n\n", "--no-typewriter", "hello")
	require.NoError(t, err)

	store, err := telemetry.OpenUsageStore(filepath.Join(env.dir, "usage.db"))
	require.NoError(t, err)
	defer store.Close()

	totals, err := store.Totals(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, totals, 1)
	assert.Equal(t, config.DefaultFastModel, totals[0].Model)
	assert.Equal(t, 1, totals[0].Calls)
	assert.Equal(t, 12, totals[0].InputTokens)
	assert.Equal(t, 34, totals[0].OutputTokens)
}

func TestAsk_Flags(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.run(t, "n\n", "--no-typewriter", "--model", "opus", "--max-tokens", "50", "hi")
	require.NoError(t, err)

	reqs := env.api.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "claude-3-opus-20240229", reqs[0].Model)
	assert.Equal(t, 50, reqs[0].MaxTokens)
}

func TestAsk_MissingPrompt(t *testing.T) {
	env := newTestEnv(t)

	_, _, err := env.run(t, "")
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
	assert.Empty(t, env.api.Requests())
}

func TestAsk_MissingKey(t *testing.T) {
	env := newTestEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "")

	_, stderr, err := env.run(t, "", "hello")
	require.ErrorIs(t, err, anthropic.ErrNotConfigured)
	assert.Equal(t, ExitConfigError, GetExitCode(err))
	assert.Contains(t, stderr, "Error: ANTHROPIC_API_KEY environment variable not set\n")
	assert.Contains(t, stderr, MissingKeyHint)
	assert.Empty(t, env.api.Requests())
}

func TestAsk_APIFailure(t *testing.T) {
	env := newTestEnv(t)
	env.api.status = http.StatusUnauthorized

	out, stderr, err := env.run(t, "y\n", "--no-typewriter", "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, anthropic.ErrAuthFailed)
	assert.Equal(t, ExitAuthError, GetExitCode(err))

	assert.Contains(t, out, "Error: ")
	assert.Empty(t, stderr, "session errors are reported once, inline")
	assert.NotContains(t, out, session.MsgContinuePrompt)
}

func TestChat_SavesTranscript(t *testing.T) {
	env := newTestEnv(t)

	out, _, err := env.run(t, "hello\nexit\ny\n", "chat", "--no-typewriter")
	require.NoError(t, err)
	assert.Contains(t, out, session.MsgConversationStarted)
	assert.Contains(t, out, session.MsgGoodbye)

	matches, err := filepath.Glob(filepath.Join(env.dir, "history", "*-test-chat-log.txt"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Contains(t, out, "Conversation saved to: "+matches[0])

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Equal(t, "You: hello\n\nClaude: Reply to: hello\n", string(data))

	reqs := env.api.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, 30, reqs[1].MaxTokens)
	assert.Equal(t, config.DefaultFastModel, reqs[1].Model)

	logData, err := os.ReadFile(filepath.Join(env.dir, "logs", "claude-chat.log"))
	require.NoError(t, err)
	assert.Contains(t, string(logData), `"prompt":"hello"`)
	assert.Contains(t, string(logData), `"title":"hello"`)
	assert.Contains(t, string(logData), `"estimated_tokens":`)
}

func TestChat_EndOfInput(t *testing.T) {
	env := newTestEnv(t)

	out, _, err := env.run(t, "", "chat")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out, session.MsgGoodbye+"\n"))

	_, statErr := os.Stat(filepath.Join(env.dir, "history"))
	assert.True(t, os.IsNotExist(statErr), "nothing saved")
}

// =============================================================================
// USAGE AND CONFIG COMMANDS
// =============================================================================

func TestUsage(t *testing.T) {
	env := newTestEnv(t)

	store, err := telemetry.OpenUsageStore(filepath.Join(env.dir, "usage.db"))
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.Record(ctx, telemetry.UsageRecord{
		SessionID: "session-a", Model: "claude-3-haiku-20240307",
		InputTokens: 1000, OutputTokens: 2000, CostUSD: 0.003,
	}))
	require.NoError(t, store.Record(ctx, telemetry.UsageRecord{
		SessionID: "session-b", Model: "claude-3-opus-20240229",
		InputTokens: 10, OutputTokens: 20, CostUSD: 1.5,
	}))
	require.NoError(t, store.Close())

	t.Run("table", func(t *testing.T) {
		out, _, err := env.run(t, "", "usage")
		require.NoError(t, err)
		assert.Contains(t, out, "claude-3-opus-20240229")
		assert.Contains(t, out, "$0.0030")
		assert.Contains(t, out, "$1.50")
		assert.Contains(t, out, "TOTAL")
		assert.Contains(t, out, "Recent Sessions")
		assert.Less(t, strings.Index(out, "opus"), strings.Index(out, "haiku"), "most expensive first")
	})

	t.Run("json", func(t *testing.T) {
		out, _, err := env.run(t, "", "usage", "--json")
		require.NoError(t, err)

		var report usageReport
		require.NoError(t, json.Unmarshal([]byte(out), &report))
		assert.Len(t, report.Models, 2)
		assert.Len(t, report.Sessions, 2)
		assert.Nil(t, report.Since)
	})
}

func TestUsage_Empty(t *testing.T) {
	env := newTestEnv(t)

	out, _, err := env.run(t, "", "usage")
	require.NoError(t, err)
	assert.Contains(t, out, "No usage recorded yet.")
}

func TestConfigInitShowPath(t *testing.T) {
	env := newTestEnv(t)
	target := filepath.Join(env.dir, "fresh", "config.toml")

	cmd := func(stdin string, args ...string) (string, error) {
		var stdout bytes.Buffer
		root := NewRootCommand()
		root.SetArgs(append(args, "--config", target))
		root.SetIn(strings.NewReader(stdin))
		root.SetOut(&stdout)
		root.SetErr(&stdout)
		err := root.ExecuteContext(context.Background())
		return stdout.String(), err
	}

	out, err := cmd("", "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+target)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.NotContains(t, string(data), testAPIKey)
	assert.Contains(t, string(data), config.DefaultFastModel)

	out, err = cmd("n\n", "config", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Cancelled")

	out, err = cmd("", "config", "show", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, "[REDACTED]")
	assert.NotContains(t, out, testAPIKey)

	out, err = cmd("", "config")
	require.NoError(t, err)
	assert.Contains(t, out, "[models]")
	assert.Contains(t, out, maskAPIKey(testAPIKey))

	out, err = cmd("", "config", "path")
	require.NoError(t, err)
	assert.Equal(t, target+"\n", out)
}

func TestConfig_InvalidFile(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.WriteFile(env.configPath, []byte("[display]\nrenderer = \"fancy\"\n"), 0600))

	_, _, err := env.run(t, "", "config", "show")
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, GetExitCode(err))
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	root := NewRootCommand()
	root.SetArgs([]string{"version"})
	root.SetOut(&out)
	require.NoError(t, root.Execute())
	assert.True(t, strings.HasPrefix(out.String(), "claude-chat "+Version))
}

func TestModelsCommand(t *testing.T) {
	env := newTestEnv(t)

	out, _, err := env.run(t, "", "models")
	require.NoError(t, err)

	assert.Contains(t, out, "claude-3-opus-20240229")
	assert.Contains(t, out, "$15.00/$75.00 per MTok")
	assert.Contains(t, out, "200K tokens")
	for _, line := range strings.Split(out, "\n") {
		switch {
		case strings.Contains(line, "claude-3-haiku-20240307"):
			assert.Contains(t, line, "[fast]")
		case strings.Contains(line, "claude-3-sonnet-20240229"):
			assert.Contains(t, line, "[default]")
		case strings.Contains(line, "claude-3-opus-20240229"):
			assert.NotContains(t, line, "[fast]")
			assert.NotContains(t, line, "[default]")
		}
	}
}

// =============================================================================
// ERRORS
// =============================================================================

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"validation", ErrMissingArgument("prompt", "x"), ExitUsageError},
		{"not configured", anthropic.ErrNotConfigured, ExitConfigError},
		{"config", config.ValidateErrors{{Field: "a", Message: "b"}}, ExitConfigError},
		{"auth", fmt.Errorf("wrapped: %w", anthropic.ErrAuthFailed), ExitAuthError},
		{"rate limited", anthropic.ErrRateLimited, ExitRateLimitError},
		{"overloaded", anthropic.ErrOverloaded, ExitRateLimitError},
		{"model", anthropic.ErrModelNotFound, ExitNotFoundError},
		{"deadline", context.DeadlineExceeded, ExitTimeoutError},
		{"session", &session.SessionError{Turn: 1, Err: anthropic.ErrAuthFailed}, ExitAuthError},
		{"other", errors.New("boom"), ExitGeneralError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestDisplayError(t *testing.T) {
	var buf bytes.Buffer
	DisplayError(&buf, &session.SessionError{Err: errors.New("shown already")})
	assert.Empty(t, buf.String())

	DisplayError(&buf, NewCommandError("usage", "show", "cannot open usage ledger", errors.New("locked")))
	assert.Equal(t, "Error: usage show failed: cannot open usage ledger: locked\n", buf.String())
}

// =============================================================================
// INPUT
// =============================================================================

func TestPlainReader(t *testing.T) {
	var out bytes.Buffer
	r, release := newLineReader(strings.NewReader("first\r\nsecond"), &out)
	defer release()

	line, err := r.ReadLine("You: ")
	require.NoError(t, err)
	assert.Equal(t, "first", line)

	line, err = r.ReadLine("You: ")
	require.NoError(t, err)
	assert.Equal(t, "second", line, "final line without newline")

	_, err = r.ReadLine("You: ")
	assert.Error(t, err)
	assert.Equal(t, "You: You: You: ", out.String())
}

func TestRequireConfirmation(t *testing.T) {
	var out bytes.Buffer

	ok, err := RequireConfirmation(strings.NewReader(""), &out, true, "overwrite")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, out.String(), "--force does not prompt")

	for input, want := range map[string]bool{"y\n": true, "YES\n": true, "n\n": false, "": false} {
		ok, err := RequireConfirmation(strings.NewReader(input), &out, false, "overwrite")
		require.NoError(t, err)
		assert.Equal(t, want, ok, "input %q", input)
	}
}

func TestMaskAPIKey(t *testing.T) {
	assert.Equal(t, "(not set)", maskAPIKey(""))
	assert.Equal(t, "[invalid key]", maskAPIKey("short"))

	masked := maskAPIKey(testAPIKey)
	assert.True(t, strings.HasPrefix(masked, "sha256:"))
	assert.NotContains(t, masked, "sk-ant")
}
