package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"gitlab.ozon.dev/pupkingeorgij/giftstore/internal/metrics"
)

func auditEntries(logs *observer.ObservedLogs) []map[string]interface{} {
	var out []map[string]interface{}
	for _, e := range logs.FilterMessage("audit").All() {
		if entry, ok := e.ContextMap()["entry"].(map[string]interface{}); ok {
			out = append(out, entry)
		}
	}
	return out
}

func TestAuditManager_FlushesBySizeAndTimeout(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	m := NewAuditManager(1, 2, 20*time.Millisecond, zap.New(core))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	m.LogEntry(ctx, AuditLogEntry{Handler: "a"})
	m.LogEntry(ctx, AuditLogEntry{Handler: "b"})
	require.Eventually(t, func() bool { return len(auditEntries(logs)) == 2 }, time.Second, 5*time.Millisecond)

	m.LogEntry(ctx, AuditLogEntry{Handler: "c"})
	require.Eventually(t, func() bool { return len(auditEntries(logs)) == 3 }, time.Second, 5*time.Millisecond)

	m.Shutdown(context.Background())
	assert.Equal(t, 0, m.Pending())

	m.LogEntry(ctx, AuditLogEntry{Handler: "late"})
	entries := auditEntries(logs)
	require.Len(t, entries, 4)
	assert.Equal(t, "late", entries[3]["handler"])
	assert.Equal(t, 0, m.Pending())
}

func TestAuditManager_ShutdownRacingLogEntry(t *testing.T) {
	for round := 0; round < 20; round++ {
		core, logs := observer.New(zapcore.InfoLevel)
		m := NewAuditManager(2, 4, time.Second, zap.New(core))
		ctx, cancel := context.WithCancel(context.Background())
		m.Start(ctx)

		const writers = 50
		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				m.LogEntry(context.Background(), AuditLogEntry{Handler: fmt.Sprintf("h%d", i)})
			}(i)
		}
		m.Shutdown(context.Background())
		wg.Wait()
		cancel()

		require.Len(t, auditEntries(logs), writers, "round %d", round)
		assert.Equal(t, 0, m.Pending(), "round %d", round)
	}
}

func TestAuditManager_FullQueueWritesDirect(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	m := NewAuditManager(1, 1, time.Second, zap.New(core))
	before := testutil.ToFloat64(metrics.AuditEntriesDirect)

	m.dispatchBatch([]AuditLogEntry{{Handler: "a"}})
	m.dispatchBatch([]AuditLogEntry{{Handler: "b"}})
	m.dispatchBatch([]AuditLogEntry{{Handler: "c"}, {Handler: "d"}})

	assert.Equal(t, before+2, testutil.ToFloat64(metrics.AuditEntriesDirect))
	assert.Len(t, logs.FilterField(zap.String("source", "direct")).All(), 2)
	assert.Len(t, m.batchChan, 2)
}

func TestAuditMiddleware_RecordsStatusChange(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	env := newTestEnv(t, zap.New(core))

	rr := env.do(t, asAssistant, http.MethodPut, "/orders/order-1/status", map[string]string{"status": "shipped"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	rr = env.do(t, nil, http.MethodPost, "/auth/signin", map[string]string{
		"email": asAdmin.email, "password": asAdmin.password,
	})
	require.Equal(t, http.StatusOK, rr.Code)

	env.server.AuditManager.Shutdown(context.Background())

	entries := auditEntries(logs)
	require.Len(t, entries, 2)
	byHandler := map[string]map[string]interface{}{}
	for _, e := range entries {
		byHandler[e["handler"].(string)] = e
	}

	update := byHandler["updateOrderStatus"]
	require.NotNil(t, update)
	assert.Equal(t, "order-1", update["entity_id"])
	assert.Equal(t, "confirmed", update["old_status"])
	assert.Equal(t, "shipped", update["new_status"])
	assert.Equal(t, asAssistant.email, update["actor_email"])
	assert.EqualValues(t, http.StatusOK, update["status_code"])

	signIn := byHandler["signIn"]
	require.NotNil(t, signIn)
	assert.NotContains(t, signIn, "request")
	assert.NotContains(t, signIn, "response")
}
