package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/grovetools/basin/config"
	"github.com/grovetools/basin/errors"
	"github.com/grovetools/basin/logging"
	"github.com/grovetools/basin/pkg/basin"
	"github.com/grovetools/basin/pkg/channel"
	"github.com/grovetools/basin/pkg/watcher"
	"github.com/grovetools/basin/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func newEngine(t *testing.T, root string, watch bool, specs ...channel.Spec) (*basin.Basin, *watcher.Manual) {
	t.Helper()
	logger, _ := testutil.NullLogger()
	m := watcher.NewManual()
	b, err := basin.New(basin.Options{
		Root:     root,
		Watch:    watch,
		Channels: specs,
		Logger:   logger,
		Watcher:  m.Factory(),
	})
	require.NoError(t, err)
	return b, m
}

func run(t *testing.T, b *basin.Basin) <-chan error {
	t.Helper()
	result := make(chan error, 1)
	go func() {
		result <- b.Run(context.Background())
	}()
	t.Cleanup(func() { _ = b.Close() })
	return result
}

func waitRun(t *testing.T, result <-chan error) error {
	t.Helper()
	select {
	case err := <-result:
		return err
	case <-time.After(waitFor):
		t.Fatal("Run did not return")
		return nil
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.PipelineConfig
	}{
		{"copy without out", config.PipelineConfig{Name: "js", Action: config.ActionCopy}},
		{"unknown action", config.PipelineConfig{Name: "js", Action: "minify"}},
		{"ready as source", config.PipelineConfig{Name: "js", Action: config.ActionLog, Channel: "@ready"}},
		{"all as source", config.PipelineConfig{Name: "js", Action: config.ActionLog, Channel: "@all"}},
		{"settled as source", config.PipelineConfig{Name: "js", Action: config.ActionLog, Channel: "@settled"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg, nil)
			require.Error(t, err)
			assert.Equal(t, errors.ErrCodeConfigInvalid, errors.GetCode(err))
		})
	}
}

func TestTarget(t *testing.T) {
	tests := []struct {
		strip  string
		source string
		want   string
	}{
		{"", "src/app.js", "src/app.js"},
		{"src", "src/app.js", "app.js"},
		{"src/", "src/js/app.js", "js/app.js"},
		{"./src", "src/app.js", "app.js"},
		{"src", "lib/app.js", "lib/app.js"},
		{"src", "srcfoo/app.js", "srcfoo/app.js"},
	}

	for _, tt := range tests {
		t.Run(tt.strip+"|"+tt.source, func(t *testing.T) {
			p, err := New(config.PipelineConfig{Name: "js", Action: config.ActionCopy, Out: "dist", StripPrefix: tt.strip}, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Target(tt.source))
		})
	}
}

func TestCopyPipelineOneShot(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFile(t, filepath.Join(root, "src", "app.js"), "console.log(1)")
	testutil.WriteFile(t, filepath.Join(root, "src", "lib", "util.js"), "export {}")
	testutil.WriteFile(t, filepath.Join(root, "src", "style.css"), "body{}")

	b, m := newEngine(t, root, false, channel.Spec{Name: "js", Patterns: []string{"**/*.js"}})
	out := &testutil.Buffer{}
	printer := logging.NewPrettyLogger().WithWriter(out)

	pipelines, err := Attach(b, []config.PipelineConfig{{
		Name:        "scripts",
		Action:      config.ActionCopy,
		Channel:     "js",
		Out:         filepath.Join(root, "dist"),
		StripPrefix: "src",
	}}, printer)
	require.NoError(t, err)
	require.Len(t, pipelines, 1)
	assert.Equal(t, "scripts", pipelines[0].Name())

	result := run(t, b)
	require.True(t, m.Scan(
		filepath.Join(root, "src", "app.js"),
		filepath.Join(root, "src", "lib", "util.js"),
		filepath.Join(root, "src", "style.css"),
	))
	require.NoError(t, waitRun(t, result))

	data, err := os.ReadFile(filepath.Join(root, "dist", "app.js"))
	require.NoError(t, err)
	assert.Equal(t, "console.log(1)", string(data))

	data, err = os.ReadFile(filepath.Join(root, "dist", "lib", "util.js"))
	require.NoError(t, err)
	assert.Equal(t, "export {}", string(data))

	assert.NoFileExists(t, filepath.Join(root, "dist", "style.css"))

	artifact, ok, err := b.Lookup("scripts", "src/app.js")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Artifact{Source: "src/app.js", Target: "app.js", Content: "console.log(1)"}, artifact)

	assert.Contains(t, out.String(), "scripts: 2 files -> "+filepath.Join(root, "dist"))
}

func TestNewAcceptsDefaultChannel(t *testing.T) {
	p, err := New(config.PipelineConfig{Name: "all", Action: config.ActionLog, Channel: "@default"}, nil)
	require.NoError(t, err)
	assert.Equal(t, basin.Default, p.source)
}

func TestCopySummaryCountsInitialBatch(t *testing.T) {
	root := t.TempDir()
	files := make(map[string]string, 20)
	for i := 0; i < 20; i++ {
		files[fmt.Sprintf("src/m%02d.js", i)] = testutil.RandomString(16)
	}
	paths := testutil.WriteTree(t, root, files)

	b, m := newEngine(t, root, false, channel.Spec{Name: "js", Patterns: []string{"**/*.js"}})
	out := &testutil.Buffer{}
	_, err := Attach(b, []config.PipelineConfig{{
		Name:        "scripts",
		Action:      config.ActionCopy,
		Channel:     "js",
		Out:         "dist",
		StripPrefix: "src",
	}}, logging.NewPrettyLogger().WithWriter(out))
	require.NoError(t, err)

	result := run(t, b)
	require.True(t, m.Scan(paths...))
	require.NoError(t, waitRun(t, result))

	assert.Equal(t, 20, b.Len("scripts"))
	assert.Contains(t, out.String(), "scripts: 20 files -> dist")
	assert.Equal(t, 1, strings.Count(out.String(), "scripts:"))

	for rel, content := range files {
		data, err := os.ReadFile(filepath.Join(root, "dist", strings.TrimPrefix(rel, "src/")))
		require.NoError(t, err)
		assert.Equal(t, content, string(data))
	}
}

func TestCopyPipelineUsesEmittedContent(t *testing.T) {
	root := t.TempDir()

	logger, _ := testutil.NullLogger()
	m := watcher.NewManual()
	b, err := basin.New(basin.Options{
		Root:     root,
		EmitFile: true,
		Logger:   logger,
		Watcher:  m.Factory(),
	})
	require.NoError(t, err)

	_, err = Attach(b, []config.PipelineConfig{{Name: "all", Action: config.ActionCopy, Out: "out"}},
		logging.NewPrettyLogger().WithWriter(&testutil.Buffer{}))
	require.NoError(t, err)

	testutil.WriteFile(t, filepath.Join(root, "a.txt"), "hello")
	result := run(t, b)
	require.True(t, m.Scan(filepath.Join(root, "a.txt")))
	require.NoError(t, waitRun(t, result))

	data, err := os.ReadFile(filepath.Join(root, "out", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestCopyPipelineRemovesOutput(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src", "app.js")
	testutil.WriteFile(t, src, "v1")

	b, m := newEngine(t, root, true)
	_, err := Attach(b, []config.PipelineConfig{{
		Name:        "copy",
		Action:      config.ActionCopy,
		Out:         filepath.Join(root, "dist"),
		StripPrefix: "src",
	}}, logging.NewPrettyLogger().WithWriter(&testutil.Buffer{}))
	require.NoError(t, err)

	ready := make(chan struct{})
	b.Once(basin.Ready, func(ctx context.Context, b *basin.Basin, args ...any) error {
		close(ready)
		return nil
	})

	result := run(t, b)
	require.True(t, m.Scan(src))
	<-ready

	target := filepath.Join(root, "dist", "app.js")
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(target)
		return err == nil && string(data) == "v1"
	}, waitFor, tick)

	testutil.WriteFile(t, src, "v2")
	require.True(t, m.Send(watcher.Notification{Kind: watcher.Modified, Path: src}))
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(target)
		return err == nil && string(data) == "v2"
	}, waitFor, tick)

	require.NoError(t, os.Remove(src))
	require.True(t, m.Send(watcher.Notification{Kind: watcher.Removed, Path: src}))
	require.Eventually(t, func() bool {
		_, err := os.Stat(target)
		return os.IsNotExist(err)
	}, waitFor, tick)

	_, ok, err := b.Lookup("copy", "src/app.js")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.Close())
	require.NoError(t, waitRun(t, result))
}

func TestLogPipelinePrintsChanges(t *testing.T) {
	root := t.TempDir()
	testutil.WriteFile(t, filepath.Join(root, "index.html"), "<html>")

	b, m := newEngine(t, root, false)
	out := &testutil.Buffer{}
	_, err := Attach(b, []config.PipelineConfig{{Name: "print", Action: config.ActionLog}},
		logging.NewPrettyLogger().WithWriter(out))
	require.NoError(t, err)

	result := run(t, b)
	require.True(t, m.Scan(filepath.Join(root, "index.html")))
	require.NoError(t, waitRun(t, result))

	assert.Contains(t, out.String(), "add")
	assert.Contains(t, out.String(), "index.html")
}

func TestStageWithoutArtifactFails(t *testing.T) {
	b, _ := newEngine(t, t.TempDir(), false)
	p, err := New(config.PipelineConfig{Name: "copy", Action: config.ActionCopy, Out: "dist"}, nil)
	require.NoError(t, err)
	p.Attach(b)

	err = b.Emit(context.Background(), p.WriteEvent(), "not an artifact")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeHandlerFailed, errors.GetCode(err))
}

func TestIgnorePatterns(t *testing.T) {
	root := filepath.FromSlash("/project")
	cfgs := []config.PipelineConfig{
		{Name: "a", Action: config.ActionCopy, Out: filepath.Join(root, "dist")},
		{Name: "b", Action: config.ActionCopy, Out: "build/js"},
		{Name: "c", Action: config.ActionCopy, Out: filepath.FromSlash("/elsewhere/out")},
		{Name: "d", Action: config.ActionCopy, Out: root},
		{Name: "e", Action: config.ActionLog},
	}

	assert.Equal(t, []string{"dist", "build/js"}, IgnorePatterns(cfgs, root))
}
