package app

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tikpost/internal/publish"
	"tikpost/internal/storage"
	"tikpost/internal/tiktok"
)

type fakeQueue struct {
	candidates []string
	listErr    error
	failDone   bool
	limit      int
	moves      map[string]string
}

func (q *fakeQueue) ListCandidates(limit int) ([]string, error) {
	q.limit = limit
	return q.candidates, q.listErr
}

func (q *fakeQueue) Relocate(path, targetDir string) (string, error) {
	if q.failDone && targetDir == q.DoneDir() {
		return "", storage.ErrRelocate
	}
	if q.moves == nil {
		q.moves = map[string]string{}
	}
	q.moves[filepath.Base(path)] = targetDir
	return filepath.Join(targetDir, filepath.Base(path)), nil
}

func (q *fakeQueue) DoneDir() string   { return "done" }
func (q *fakeQueue) FailedDir() string { return "failed" }

type fakePublisher struct {
	results  map[string]publish.Result
	errs     map[string]error
	captions []string
	order    []string
}

func (p *fakePublisher) ProcessFile(_ context.Context, filePath, caption string) (*publish.Outcome, error) {
	name := filepath.Base(filePath)
	p.order = append(p.order, name)
	p.captions = append(p.captions, caption)
	if err := p.errs[name]; err != nil {
		return nil, err
	}
	return &publish.Outcome{Result: p.results[name], PublishID: "pub-" + name, Status: []byte(`{}`)}, nil
}

func TestRunnerRoutesOutcomes(t *testing.T) {
	queue := &fakeQueue{candidates: []string{"inbox/a.mp4", "inbox/b.mp4", "inbox/c.mp4", "inbox/d.mp4"}}
	publisher := &fakePublisher{
		results: map[string]publish.Result{
			"a.mp4": publish.Succeeded,
			"b.mp4": publish.TimedOut,
			"c.mp4": publish.Failed,
		},
		errs: map[string]error{"d.mp4": tiktok.ErrInit},
	}

	runner := NewRunner(RunnerOptions{
		Queue:           queue,
		Publisher:       publisher,
		MaxPerRun:       4,
		CaptionTemplate: "{{filename}}",
		Hashtags:        []string{"#x"},
	})

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, queue.limit)
	assert.Equal(t, []string{"a.mp4", "b.mp4", "c.mp4", "d.mp4"}, publisher.order)
	assert.Equal(t, []string{"a #x", "b #x", "c #x", "d #x"}, publisher.captions)
	assert.Equal(t, map[string]string{
		"a.mp4": "done",
		"b.mp4": "done",
		"c.mp4": "failed",
		"d.mp4": "failed",
	}, queue.moves)

	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.TimedOut)
	assert.Equal(t, 2, summary.Failed)
	assert.NotEmpty(t, summary.RunID)
}

func TestRunnerDoneRelocateFailureFallsBackToFailed(t *testing.T) {
	queue := &fakeQueue{candidates: []string{"inbox/a.mp4"}, failDone: true}
	publisher := &fakePublisher{results: map[string]publish.Result{"a.mp4": publish.Succeeded}}

	summary, err := NewRunner(RunnerOptions{Queue: queue, Publisher: publisher, MaxPerRun: 1}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "failed", queue.moves["a.mp4"])
	assert.Equal(t, 1, summary.Failed)
	assert.Zero(t, summary.Succeeded)
}

func TestRunnerListFailureIsFatal(t *testing.T) {
	queue := &fakeQueue{listErr: errors.New("permission denied")}

	_, err := NewRunner(RunnerOptions{Queue: queue, Publisher: &fakePublisher{}, MaxPerRun: 1}).Run(context.Background())
	assert.ErrorContains(t, err, "permission denied")
}

func TestRunnerEmptyInbox(t *testing.T) {
	publisher := &fakePublisher{}

	summary, err := NewRunner(RunnerOptions{Queue: &fakeQueue{}, Publisher: publisher, MaxPerRun: 1}).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Total)
	assert.Empty(t, publisher.order)
}

func TestRunnerStopsOnCanceledContext(t *testing.T) {
	queue := &fakeQueue{candidates: []string{"inbox/a.mp4"}}
	publisher := &fakePublisher{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := NewRunner(RunnerOptions{Queue: queue, Publisher: publisher, MaxPerRun: 1}).Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, publisher.order)
	assert.Empty(t, queue.moves)
	assert.Equal(t, 1, summary.Total)
}

func TestRunnerRunIDsDiffer(t *testing.T) {
	runner := NewRunner(RunnerOptions{Queue: &fakeQueue{}, Publisher: &fakePublisher{}, MaxPerRun: 1})

	first, err := runner.Run(context.Background())
	require.NoError(t, err)
	second, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestRunnerTagsRecordsWithRunID(t *testing.T) {
	var logs bytes.Buffer
	queue := &fakeQueue{candidates: []string{"inbox/a.mp4"}}
	publisher := &fakePublisher{results: map[string]publish.Result{"a.mp4": publish.Succeeded}}

	summary, err := NewRunner(RunnerOptions{
		Queue:     queue,
		Publisher: publisher,
		MaxPerRun: 1,
		Logger:    slog.New(slog.NewTextHandler(&logs, nil)),
	}).Run(context.Background())
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimSpace(logs.Bytes()), []byte("\n"))
	require.Len(t, lines, 4)
	for _, line := range lines {
		assert.Contains(t, string(line), "run_id="+summary.RunID)
	}
}
