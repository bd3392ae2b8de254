package observability

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/coachpo/poolkit/errs"
)

type recordingLogger struct {
	debugs int
	infos  int
	warns  int
	errors []string
	fields [][]Field
}

func (r *recordingLogger) Debug(string, ...Field) { r.debugs++ }
func (r *recordingLogger) Info(string, ...Field)  { r.infos++ }
func (r *recordingLogger) Warn(string, ...Field)  { r.warns++ }
func (r *recordingLogger) Error(msg string, fields ...Field) {
	r.errors = append(r.errors, msg)
	r.fields = append(r.fields, fields)
}

func TestSetLoggerOverridesGlobal(t *testing.T) {
	recorder := new(recordingLogger)
	SetLogger(recorder)
	t.Cleanup(func() { SetLogger(nil) })

	Log().Debug("test")
	require.Equal(t, 1, recorder.debugs)

	SetLogger(nil)
	Log().Info("noop")
	require.Equal(t, 0, recorder.infos)
}

func TestAggregateErrorsSkipsNil(t *testing.T) {
	recorder := new(recordingLogger)
	SetLogger(recorder)
	t.Cleanup(func() { SetLogger(nil) })

	require.NoError(t, AggregateErrors("manager", "shutdown", errs.CodeLeak, []error{nil, nil}))
	require.Empty(t, recorder.errors)

	first := errors.New("first")
	second := errors.New("second")
	err := AggregateErrors("manager", "shutdown", errs.CodeLeak, []error{first, nil, second}, F("pools", 3))
	require.Error(t, err)
	require.ErrorIs(t, err, first)
	require.ErrorIs(t, err, second)
	require.Equal(t, errs.CodeLeak, errs.CodeOf(err))
	require.Contains(t, err.Error(), "pool=manager op=shutdown code=leak")
	require.Contains(t, err.Error(), `message="2 of 3 failed"`)
	require.Equal(t, []string{"aggregated errors"}, recorder.errors)
	require.Equal(t, "pools", recorder.fields[0][0].Key)
	require.Equal(t, 2, recorder.fields[0][3].Value)
}

func TestZapLoggerForwardsFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewZapLogger(zap.New(core))

	logger.Debug("resize", F("pool", "bullets"), F("capacity", 4))
	logger.Warn("shrink deferred")
	logger.Error("leak", F("outstanding", 2))

	entries := logs.All()
	require.Len(t, entries, 3)
	require.Equal(t, "resize", entries[0].Message)
	require.Equal(t, "bullets", entries[0].ContextMap()["pool"])
	require.EqualValues(t, 4, entries[0].ContextMap()["capacity"])
	require.Equal(t, zapcore.WarnLevel, entries[1].Level)
	require.EqualValues(t, 2, entries[2].ContextMap()["outstanding"])
}

func TestNewZapLoggerNilBase(t *testing.T) {
	logger := NewZapLogger(nil)
	logger.Info("discarded")
	require.NoError(t, logger.Sync())
}
