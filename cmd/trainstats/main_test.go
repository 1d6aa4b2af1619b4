package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/longbridgeapp/assert"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/hyp3rd/trainstats/internal/libs/serializer"
	"github.com/hyp3rd/trainstats/pkg/exchange"
	"github.com/hyp3rd/trainstats/pkg/stats"
	"github.com/hyp3rd/trainstats/pkg/training"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()

	var out, errOut bytes.Buffer

	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())

	return out.String(), err
}

func writeWorker(t *testing.T, dir, name, codec string, examples int64) string {
	t.Helper()

	worker := training.NewWorkerStats()
	assert.NoError(t, worker.Record(training.WorkerExampleCount, stats.Int(examples)))
	assert.NoError(t, worker.Record(training.WorkerFitTimes, stats.Events(stats.Event{Duration: 40 * time.Millisecond})))

	app := &cli{codec: codec, registry: training.NewRegistry()}
	path := filepath.Join(dir, name)
	assert.NoError(t, app.writeSet(path, worker))

	return path
}

func TestRender(t *testing.T) {
	path := writeWorker(t, t.TempDir(), "w.cbor", "cbor", 12)

	out, err := run(t, "--codec", "cbor", "render", path)
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, training.WorkerFitTimes))
	assert.True(t, strings.Contains(out, "40\n"))
}

func TestMerge_PrintsAndWrites(t *testing.T) {
	dir := t.TempDir()
	a := writeWorker(t, dir, "a.json", "json", 10)
	b := writeWorker(t, dir, "b.json", "json", 5)

	out, err := run(t, "merge", a, b)
	assert.NoError(t, err)
	assert.True(t, strings.Contains(out, "40,40"))

	merged := filepath.Join(dir, "merged.json")
	_, err = run(t, "merge", a, b, "--out", merged)
	assert.NoError(t, err)

	app := &cli{codec: "json", registry: training.NewRegistry(), log: logrus.New()}
	set, err := app.readSet(merged)
	assert.NoError(t, err)

	v, err := set.Get(training.WorkerExampleCount)
	assert.NoError(t, err)
	assert.Equal(t, int64(15), v.Int)
}

func TestMerge_RejectsMixedSchemas(t *testing.T) {
	dir := t.TempDir()
	worker := writeWorker(t, dir, "w.json", "json", 1)

	master, err := training.NewMasterStats(nil)
	assert.NoError(t, err)
	assert.NoError(t, master.Record(training.MasterAveragingCount, stats.Int(1)))

	app := &cli{codec: "json", registry: training.NewRegistry()}
	masterPath := filepath.Join(dir, "m.json")
	assert.NoError(t, app.writeSet(masterPath, master))

	_, err = run(t, "merge", masterPath, worker)
	assert.NotNil(t, err)
}

func TestUnknownCodecAndLevel(t *testing.T) {
	path := writeWorker(t, t.TempDir(), "w.json", "json", 1)

	_, err := run(t, "--codec", "yaml", "render", path)
	assert.NotNil(t, err)

	_, err = run(t, "--log-level", "loud", "render", path)
	assert.NotNil(t, err)
}

func TestSchemas(t *testing.T) {
	out, err := run(t, "schemas")
	assert.NoError(t, err)

	for _, name := range []string{training.MasterSchemaName, training.CommonSchemaName, training.WorkerSchemaName} {
		assert.True(t, strings.Contains(out, name))
	}

	assert.True(t, strings.Contains(out, "examples processed"))
}

func TestDrain(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	t.Cleanup(func() { _ = client.Close() })

	ser, err := serializer.New("msgpack")
	assert.NoError(t, err)

	ex, err := exchange.New(client, training.NewRegistry(), exchange.WithSerializer(ser))
	assert.NoError(t, err)

	for _, rounds := range []int64{2, 3} {
		master, masterErr := training.NewMasterStats(nil)
		assert.NoError(t, masterErr)
		assert.NoError(t, master.Record(training.MasterAveragingCount, stats.Int(rounds)))
		assert.NoError(t, ex.Publish(context.Background(), "job-7", master))
	}

	out, err := run(t, "drain", "--redis-addr", mr.Addr(), "--job", "job-7")
	assert.NoError(t, err)
	assert.Equal(t, training.MasterAveragingCount+strings.Repeat(" ", 55-len(training.MasterAveragingCount))+"5\n", out)

	_, err = run(t, "drain", "--redis-addr", mr.Addr())
	assert.NotNil(t, err)
}

func TestServe_RejectsNonPositiveInterval(t *testing.T) {
	for _, interval := range []string{"0", "-1s"} {
		_, err := run(t, "serve", "--addr", "127.0.0.1:0", "--job", "j", "--interval="+interval)
		assert.NotNil(t, err)
		assert.True(t, strings.Contains(err.Error(), "--interval must be positive"))
	}
}
