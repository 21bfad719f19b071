package eventlog_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/BradenHooton/sentinel/internal/eventlog"
	"github.com/BradenHooton/sentinel/internal/models"
	"github.com/BradenHooton/sentinel/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func baseTime() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func TestLogAppendAndRead(t *testing.T) {
	log := eventlog.NewLoginLog(store.NewMemory(), discardLogger())
	ctx := context.Background()

	log.Append(ctx, models.NewSecurityEvent(models.EventFailedLoginAttempt, models.SeverityMedium, baseTime(), models.EventData{
		"identity": "u***@test.com",
	}))

	events := log.Events(ctx)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventFailedLoginAttempt, events[0].Type)
	assert.Equal(t, models.SeverityMedium, events[0].Severity)
	assert.NotEmpty(t, events[0].ID)
	assert.Equal(t, "u***@test.com", events[0].Data["identity"])
}

func TestLogEvictsOldestBeyondCapacity(t *testing.T) {
	log := eventlog.NewLoginLog(store.NewMemory(), discardLogger())
	ctx := context.Background()

	for i := 0; i < 150; i++ {
		log.Append(ctx, models.NewSecurityEvent(models.EventFailedLoginAttempt, models.SeverityLow,
			baseTime().Add(time.Duration(i)*time.Second), models.EventData{"seq": i}))
	}

	events := log.Events(ctx)
	require.Len(t, events, eventlog.LoginLogCap)

	// The first 50 entries were evicted; order of the survivors holds.
	assert.EqualValues(t, 50, events[0].Data["seq"])
	assert.EqualValues(t, 149, events[len(events)-1].Data["seq"])
	for i := 1; i < len(events); i++ {
		assert.False(t, events[i].Timestamp.Before(events[i-1].Timestamp))
	}
}

func TestLogBehaviorCapacity(t *testing.T) {
	log := eventlog.NewBehaviorLog(store.NewMemory(), discardLogger())
	ctx := context.Background()

	for i := 0; i < eventlog.BehaviorLogCap+10; i++ {
		log.Append(ctx, models.NewSecurityEvent(models.EventRapidClicking, models.SeverityLow,
			baseTime().Add(time.Duration(i)*time.Second), nil))
	}

	assert.Len(t, log.Events(ctx), eventlog.BehaviorLogCap)
}

func TestLogEventsSince(t *testing.T) {
	log := eventlog.NewLoginLog(store.NewMemory(), discardLogger())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		log.Append(ctx, models.NewSecurityEvent(models.EventFailedLoginAttempt, models.SeverityLow,
			baseTime().Add(time.Duration(i)*time.Hour), models.EventData{"seq": i}))
	}

	recent := log.EventsSince(ctx, baseTime().Add(2*time.Hour+30*time.Minute))
	require.Len(t, recent, 2)
	assert.EqualValues(t, 3, recent[0].Data["seq"])
	assert.EqualValues(t, 4, recent[1].Data["seq"])
}

func TestLogClear(t *testing.T) {
	log := eventlog.NewLoginLog(store.NewMemory(), discardLogger())
	ctx := context.Background()

	log.Append(ctx, models.NewSecurityEvent(models.EventFailedLoginAttempt, models.SeverityLow, baseTime(), nil))
	require.Len(t, log.Events(ctx), 1)

	log.Clear(ctx)
	assert.Empty(t, log.Events(ctx))
}

func TestLogExportIsValidJSON(t *testing.T) {
	log := eventlog.NewLoginLog(store.NewMemory(), discardLogger())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		log.Append(ctx, models.NewSecurityEvent(models.EventFailedLoginAttempt, models.SeverityLow, baseTime(), nil))
	}

	raw, err := log.Export(ctx)
	require.NoError(t, err)

	var events []models.SecurityEvent
	require.NoError(t, json.Unmarshal(raw, &events))
	assert.Len(t, events, 3)
}

func TestLogCorruptedStorageTreatedAsEmpty(t *testing.T) {
	memory := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, memory.Set(ctx, store.LoginLogKey, []byte("not an array")))

	log := eventlog.NewLoginLog(memory, discardLogger())
	assert.Empty(t, log.Events(ctx))

	// Appending over the corrupted value starts a fresh log.
	log.Append(ctx, models.NewSecurityEvent(models.EventFailedLoginAttempt, models.SeverityLow, baseTime(), nil))
	assert.Len(t, log.Events(ctx), 1)
}

func TestLogOriginAnnotation(t *testing.T) {
	log := eventlog.NewLoginLog(store.NewMemory(), discardLogger(), eventlog.WithOrigin("sentineld/test", "http://localhost:8080"))
	ctx := context.Background()

	log.Append(ctx, models.NewSecurityEvent(models.EventFailedLoginAttempt, models.SeverityLow, baseTime(), nil))

	events := log.Events(ctx)
	require.Len(t, events, 1)
	assert.Equal(t, "sentineld/test", events[0].UserAgent)
	assert.Equal(t, "http://localhost:8080", events[0].URL)
}

func TestLogSharedStoreKeepsLogsSeparate(t *testing.T) {
	memory := store.NewMemory()
	ctx := context.Background()

	loginLog := eventlog.NewLoginLog(memory, discardLogger())
	behaviorLog := eventlog.NewBehaviorLog(memory, discardLogger())

	for i := 0; i < 3; i++ {
		loginLog.Append(ctx, models.NewSecurityEvent(models.EventFailedLoginAttempt, models.SeverityLow, baseTime(), nil))
	}
	behaviorLog.Append(ctx, models.NewSecurityEvent(models.EventRapidClicking, models.SeverityLow, baseTime(), nil))

	assert.Len(t, loginLog.Events(ctx), 3)
	assert.Len(t, behaviorLog.Events(ctx), 1)
}

func TestLogConcurrentAppends(t *testing.T) {
	log := eventlog.NewLoginLog(store.NewMemory(), discardLogger())
	ctx := context.Background()

	done := make(chan struct{})
	for w := 0; w < 4; w++ {
		go func(w int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 10; i++ {
				log.Append(ctx, models.NewSecurityEvent(models.EventFailedLoginAttempt, models.SeverityLow,
					baseTime(), models.EventData{"worker": fmt.Sprintf("w%d", w)}))
			}
		}(w)
	}
	for w := 0; w < 4; w++ {
		<-done
	}

	assert.Len(t, log.Events(ctx), 40)
}
