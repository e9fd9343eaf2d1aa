// Package pipeline provides the built-in pipelines declared in basin.yml.
//
// A copy pipeline runs in three stages chained through the event bus:
//
//	<channel>      cache the source artifact, emit <name>:paths
//	<name>:paths   compute the target path, emit <name>:write
//	<name>:write   write the artifact below out
//
// Removing a source purges its artifact and deletes the target. Once the
// initial scan has settled each copy pipeline prints how many files it built.
package pipeline

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/grovetools/basin/config"
	"github.com/grovetools/basin/errors"
	"github.com/grovetools/basin/logging"
	"github.com/grovetools/basin/pkg/basin"
	"github.com/grovetools/basin/pkg/fsio"
	"github.com/sirupsen/logrus"
)

// Artifact is what a copy pipeline caches per source file.
type Artifact struct {
	Source  string
	Target  string
	Content string
}

// Pipeline is one configured pipeline.
type Pipeline struct {
	cfg     config.PipelineConfig
	source  basin.Name
	printer *logging.PrettyLogger
	logger  *logrus.Entry
}

// New creates a pipeline from its configuration. printer receives the
// user-facing output of log pipelines and Ready summaries.
func New(cfg config.PipelineConfig, printer *logging.PrettyLogger) (*Pipeline, error) {
	switch cfg.Action {
	case config.ActionCopy:
		if cfg.Out == "" {
			return nil, errors.ConfigInvalid(fmt.Sprintf("pipeline '%s' requires 'out' for the copy action", cfg.Name))
		}
	case config.ActionLog:
	default:
		return nil, errors.ConfigInvalid(fmt.Sprintf("pipeline '%s' has unknown action '%s'", cfg.Name, cfg.Action))
	}

	// An empty channel means every change. Of the engine's own names only
	// the default channel carries change events.
	source := basin.All
	if cfg.Channel != "" {
		source = basin.ParseName(cfg.Channel)
		if source.Reserved() && source != basin.Default {
			return nil, errors.ConfigInvalid(fmt.Sprintf("pipeline '%s' cannot read from reserved name '%s'", cfg.Name, cfg.Channel)).
				WithDetail("channel", cfg.Channel)
		}
	}
	if printer == nil {
		printer = logging.NewPrettyLogger()
	}

	return &Pipeline{
		cfg:     cfg,
		source:  source,
		printer: printer,
	}, nil
}

// Attach builds every pipeline and registers its handlers on b.
func Attach(b *basin.Basin, cfgs []config.PipelineConfig, printer *logging.PrettyLogger) ([]*Pipeline, error) {
	pipelines := make([]*Pipeline, 0, len(cfgs))
	for _, cfg := range cfgs {
		p, err := New(cfg, printer)
		if err != nil {
			return nil, err
		}
		p.Attach(b)
		pipelines = append(pipelines, p)
	}
	return pipelines, nil
}

// Name returns the pipeline name, which is also its cache store.
func (p *Pipeline) Name() string {
	return p.cfg.Name
}

// PathsEvent is the second stage event of a copy pipeline.
func (p *Pipeline) PathsEvent() basin.Name {
	return basin.Event(p.cfg.Name + ":paths")
}

// WriteEvent is the final stage event of a copy pipeline.
func (p *Pipeline) WriteEvent() basin.Name {
	return basin.Event(p.cfg.Name + ":write")
}

// Attach registers the pipeline's handlers.
func (p *Pipeline) Attach(b *basin.Basin) {
	p.logger = b.Logger().WithField("pipeline", p.cfg.Name)

	switch p.cfg.Action {
	case config.ActionCopy:
		b.OnChange(p.source, p.collect)
		b.On(p.PathsEvent(), p.route)
		b.On(p.WriteEvent(), p.write)
		b.On(basin.Settled, p.summarize)
	case config.ActionLog:
		b.OnChange(p.source, p.print)
	}
}

// collect caches the source artifact, or cleans up after a removal.
func (p *Pipeline) collect(ctx context.Context, b *basin.Basin, ev basin.ChangeEvent) error {
	if ev.Kind == basin.Removed {
		value, ok, err := b.Purge(p.cfg.Name, ev.Path)
		if err != nil || !ok {
			return err
		}
		artifact := value.(Artifact)
		target := p.outPath(b, artifact.Target)
		p.logger.WithField("target", target).Debug("Removing output")
		return fsio.Delete(target)
	}

	content := ev.Content
	if !ev.HasContent {
		f, err := b.Read(ev.Path)
		if err != nil {
			return err
		}
		content = f.Content
	}

	artifact := Artifact{Source: ev.Path, Content: content}
	if _, err := b.Cache(p.cfg.Name, ev.Path, artifact); err != nil {
		return err
	}
	return b.Emit(ctx, p.PathsEvent(), artifact)
}

// route computes the output path of an artifact.
func (p *Pipeline) route(ctx context.Context, b *basin.Basin, args ...any) error {
	artifact, err := artifactArg(args)
	if err != nil {
		return err
	}

	artifact.Target = p.Target(artifact.Source)
	if _, err := b.Cache(p.cfg.Name, artifact.Source, artifact); err != nil {
		return err
	}
	return b.Emit(ctx, p.WriteEvent(), artifact)
}

func (p *Pipeline) write(ctx context.Context, b *basin.Basin, args ...any) error {
	artifact, err := artifactArg(args)
	if err != nil {
		return err
	}

	p.logger.WithFields(logrus.Fields{
		"source": artifact.Source,
		"target": artifact.Target,
	}).Debug("Writing output")
	return b.Write(p.cfg.Out, artifact.Target, []byte(artifact.Content))
}

// summarize reports the artifacts built from the initial scan.
func (p *Pipeline) summarize(ctx context.Context, b *basin.Basin, args ...any) error {
	count := b.Len(p.cfg.Name)
	p.logger.WithFields(logrus.Fields{
		"artifacts": count,
		"sources":   b.Keys(p.cfg.Name),
	}).Info("Pipeline ready")
	p.printer.Success(fmt.Sprintf("%s: %d files -> %s", p.cfg.Name, count, p.cfg.Out))
	return nil
}

func (p *Pipeline) print(ctx context.Context, b *basin.Basin, ev basin.ChangeEvent) error {
	p.printer.Change(ev.Kind.String(), ev.Path)
	return nil
}

// Target maps a root-relative source path to its path below out.
func (p *Pipeline) Target(source string) string {
	prefix := strings.Trim(path.Clean("/"+p.cfg.StripPrefix), "/")
	if prefix != "" && strings.HasPrefix(source, prefix+"/") {
		return strings.TrimPrefix(source, prefix+"/")
	}
	return source
}

func (p *Pipeline) outPath(b *basin.Basin, target string) string {
	out := p.cfg.Out
	if !filepath.IsAbs(out) {
		out = filepath.Join(b.Root(), out)
	}
	return filepath.Join(out, filepath.FromSlash(target))
}

func artifactArg(args []any) (Artifact, error) {
	if len(args) > 0 {
		if artifact, ok := args[0].(Artifact); ok {
			return artifact, nil
		}
	}
	return Artifact{}, errors.New(errors.ErrCodeHandlerFailed, "pipeline stage called without an artifact")
}

// IgnorePatterns returns root-relative patterns for copy outputs that lie
// inside root, so pipelines never consume their own output.
func IgnorePatterns(cfgs []config.PipelineConfig, root string) []string {
	var patterns []string
	for _, cfg := range cfgs {
		if cfg.Action != config.ActionCopy || cfg.Out == "" {
			continue
		}
		out := cfg.Out
		if !filepath.IsAbs(out) {
			out = filepath.Join(root, out)
		}
		rel, err := filepath.Rel(root, out)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		patterns = append(patterns, filepath.ToSlash(rel))
	}
	return patterns
}
