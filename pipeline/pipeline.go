// Package pipeline coordinates the full run lifecycle: stack and clean
// sessions, train the basis, project sessions into scores, and segment the
// score trajectories. The coordinator is the store's only writer; executors
// only ever run pure per-session computations.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/behaviorkit/depthpca/changepoints"
	"github.com/behaviorkit/depthpca/compute"
	"github.com/behaviorkit/depthpca/frames"
	"github.com/behaviorkit/depthpca/logging"
	"github.com/behaviorkit/depthpca/pca"
	"github.com/behaviorkit/depthpca/store"
	"github.com/behaviorkit/depthpca/timegrid"
)

// closeTimeout bounds executor teardown after a run.
const closeTimeout = 30 * time.Second

// Pipeline runs training, scoring, and changepoint detection over a session
// source, persisting results through a ResultStore.
type Pipeline struct {
	cfg    Config
	source frames.Source
	store  store.ResultStore
	exec   compute.Executor
	log    logging.Logger
}

// New validates the configuration and assembles a pipeline. A nil executor
// falls back to serial execution.
func New(cfg Config, src frames.Source, st store.ResultStore, exec compute.Executor, log logging.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if exec == nil {
		exec = compute.NewSerial()
	}
	return &Pipeline{
		cfg:    cfg,
		source: src,
		store:  st,
		exec:   exec,
		log:    logging.OrDefault(log),
	}, nil
}

// Close tears down the executor and the store. Teardown problems are logged,
// never escalated; results already committed are unaffected.
func (p *Pipeline) Close() {
	if err := p.exec.Close(closeTimeout); err != nil {
		p.log.Warn("executor teardown incomplete", logging.Fields{"error": err.Error()})
	}
	if err := p.store.Close(); err != nil {
		p.log.Warn("store close failed", logging.Fields{"error": err.Error()})
	}
}

// sessionData is one session's cleaned, flattened frames plus the optional
// missing-pixel mask and its timestamps in seconds.
type sessionData struct {
	desc   frames.SessionDescriptor
	matrix *mat.Dense
	mask   [][]bool
	stamps []float64
}

// loadSession reads, cleans, and flattens one session. withMask derives the
// missing-pixel mask from the raw mask channel and zeroes masked pixels
// before cleaning.
func (p *Pipeline) loadSession(desc frames.SessionDescriptor, withMask bool) (*sessionData, error) {
	reader, err := p.source.Open(desc.UUID)
	if err != nil {
		return nil, err
	}

	stack, err := reader.ReadFrames(0, desc.Frames)
	if err != nil {
		return nil, err
	}

	var maskMat [][]bool
	if withMask {
		if !desc.HasMask {
			return nil, fmt.Errorf("session %s has no mask channel for missing-data mode", desc.UUID)
		}
		raw, err := reader.ReadMaskRaw(0, desc.Frames)
		if err != nil {
			return nil, err
		}
		stack.ClipHeights(float32(p.cfg.Mask.MinHeight), float32(p.cfg.Mask.MaxHeight))
		mask, err := frames.DeriveMask(raw, stack, p.cfg.Mask)
		if err != nil {
			return nil, err
		}
		frames.ZeroMasked(stack, mask)
		maskMat = mask.MaskMatrix()
	}

	cleaned := p.cfg.Clean.CleanChunked(stack, p.cfg.ChunkSize)

	stamps, err := reader.Timestamps()
	if err != nil {
		return nil, err
	}
	if stamps == nil {
		p.log.Warn("session has no timestamps, synthesizing from nominal rate", logging.Fields{
			"session": desc.UUID.String(), "fps": p.cfg.FPS,
		})
		stamps = make([]float64, desc.Frames)
		for i := range stamps {
			stamps[i] = float64(i) / p.cfg.FPS
		}
	}
	if len(stamps) != desc.Frames {
		return nil, fmt.Errorf("session %s has %d timestamps for %d frames", desc.UUID, len(stamps), desc.Frames)
	}

	return &sessionData{
		desc:   desc,
		matrix: cleaned.Matrix(),
		mask:   maskMat,
		stamps: stamps,
	}, nil
}

// Train stacks every session into one matrix, factorizes it, and persists
// the model. Any failure aborts the run with nothing persisted.
func (p *Pipeline) Train(ctx context.Context) (*pca.Model, error) {
	descs, err := p.source.EnumerateSessions(ctx)
	if err != nil {
		return nil, err
	}
	if len(descs) == 0 {
		return nil, fmt.Errorf("source has no sessions")
	}

	p.log.Info("training basis", logging.Fields{
		"sessions": len(descs), "rank": p.cfg.Train.Rank,
		"missing_data": p.cfg.Train.MissingData,
	})

	tasks := make([]compute.Task, len(descs))
	for i, desc := range descs {
		desc := desc
		tasks[i] = func(ctx context.Context) (any, error) {
			return p.loadSession(desc, p.cfg.Train.MissingData)
		}
	}

	// Drain the whole batch even after a failure so the executor is never
	// left blocked on an abandoned channel.
	loaded := make([]*sessionData, len(descs))
	var loadErr error
	for res := range p.exec.Submit(ctx, tasks) {
		if res.Err != nil {
			if loadErr == nil {
				loadErr = fmt.Errorf("session %s: %w", descs[res.Index].UUID, res.Err)
			}
			continue
		}
		loaded[res.Index] = res.Value.(*sessionData)
	}
	if loadErr != nil {
		return nil, loadErr
	}

	x, mask := concatSessions(loaded, p.cfg.Train.MissingData)

	params := p.cfg.Train
	params.Logger = p.log
	model, err := pca.NewTrainer(params).Train(x, mask)
	if err != nil {
		return nil, err
	}

	if err := p.store.SaveModel(model); err != nil {
		return nil, err
	}

	p.log.Info("basis trained", logging.Fields{
		"rank": model.Rank(), "features": model.Features(),
	})
	return model, nil
}

// concatSessions stacks the sessions' matrices row-wise, in enumeration
// order, along with their masks when requested.
func concatSessions(loaded []*sessionData, withMask bool) (*mat.Dense, [][]bool) {
	total, d := 0, 0
	for _, s := range loaded {
		n, cols := s.matrix.Dims()
		total += n
		d = cols
	}

	x := mat.NewDense(total, d, nil)
	var mask [][]bool
	if withMask {
		mask = make([][]bool, 0, total)
	}

	row := 0
	for _, s := range loaded {
		n, _ := s.matrix.Dims()
		for i := 0; i < n; i++ {
			x.SetRow(row, s.matrix.RawRowView(i))
			row++
		}
		if withMask {
			mask = append(mask, s.mask...)
		}
	}
	return x, mask
}

// Apply projects every session onto the stored basis, reindexes the scores
// onto the uniform time grid, and persists them with the session metadata.
// Sessions that fail are skipped with a warning; if any were skipped the run
// returns ErrInterrupted after finishing the rest.
func (p *Pipeline) Apply(ctx context.Context) error {
	model, err := p.loadModel()
	if err != nil {
		return err
	}

	applier, err := pca.NewApplier(model, p.cfg.Apply)
	if err != nil {
		return err
	}

	descs, err := p.source.EnumerateSessions(ctx)
	if err != nil {
		return err
	}

	p.log.Info("applying basis", logging.Fields{
		"sessions": len(descs), "missing_data": p.cfg.Apply.MissingData,
	})

	type applied struct {
		desc frames.SessionDescriptor
		set  *store.ScoreSet
	}

	tasks := make([]compute.Task, len(descs))
	for i, desc := range descs {
		desc := desc
		tasks[i] = func(ctx context.Context) (any, error) {
			data, err := p.loadSession(desc, p.cfg.Apply.MissingData)
			if err != nil {
				return nil, err
			}

			scores, err := applier.Scores(data.matrix, data.mask)
			if err != nil {
				return nil, err
			}

			grid, err := timegrid.Reindex(scores, data.stamps, p.cfg.FPS)
			if err != nil {
				return nil, err
			}

			return &applied{desc: desc, set: &store.ScoreSet{
				Scores:     grid.Scores,
				Marker:     grid.Marker,
				Timestamps: grid.Timestamps,
			}}, nil
		}
	}

	skipped := 0
	var storeErr error
	for res := range p.exec.Submit(ctx, tasks) {
		desc := descs[res.Index]
		if res.Err != nil {
			skipped++
			p.log.Warn("skipping session", logging.Fields{
				"session": desc.UUID.String(), "error": res.Err.Error(),
			})
			continue
		}
		if storeErr != nil {
			continue
		}

		a := res.Value.(*applied)
		if err := p.store.SaveScores(desc.UUID, a.set); err != nil {
			storeErr = fmt.Errorf("persisting scores for %s: %w", desc.UUID, err)
			continue
		}
		if len(desc.Metadata) > 0 {
			if err := p.store.SaveSessionMetadata(desc.UUID, desc.Metadata); err != nil {
				storeErr = fmt.Errorf("persisting metadata for %s: %w", desc.UUID, err)
			}
		}
	}

	if storeErr != nil {
		return storeErr
	}
	if skipped > 0 {
		return fmt.Errorf("%w: %d of %d sessions skipped", ErrInterrupted, skipped, len(descs))
	}
	return nil
}

// Changepoints segments every session's score trajectory and persists the
// boundary times in seconds. In missing-data mode, previously stored scores
// are required to impute masked pixels before projection.
func (p *Pipeline) Changepoints(ctx context.Context) error {
	model, err := p.loadModel()
	if err != nil {
		return err
	}

	applier, err := pca.NewApplier(model, pca.ApplyParams{CenterScores: p.cfg.Apply.CenterScores})
	if err != nil {
		return err
	}

	descs, err := p.source.EnumerateSessions(ctx)
	if err != nil {
		return err
	}

	// The coordinator reads stored scores up front so the per-session tasks
	// stay pure and a missing artifact fails before any compute.
	stored := make([]*store.ScoreSet, len(descs))
	if p.cfg.Apply.MissingData {
		for i, desc := range descs {
			set, err := p.store.Scores(desc.UUID)
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("%w: no stored scores for session %s; run apply first", ErrMissingArtifact, desc.UUID)
			}
			if err != nil {
				return err
			}
			stored[i] = set
		}
	}

	params := p.cfg.Detect
	params.Logger = p.log
	detector := changepoints.NewDetector(params)

	p.log.Info("detecting changepoints", logging.Fields{"sessions": len(descs)})

	type detected struct {
		set  *store.ChangepointSet
		none bool
	}

	tasks := make([]compute.Task, len(descs))
	for i, desc := range descs {
		desc := desc
		prior := stored[i]
		tasks[i] = func(ctx context.Context) (any, error) {
			data, err := p.loadSession(desc, p.cfg.Apply.MissingData)
			if err != nil {
				return nil, err
			}

			if p.cfg.Apply.MissingData {
				if err := p.imputeFromScores(data, prior, applier); err != nil {
					return nil, err
				}
			}

			scores, err := applier.Scores(data.matrix, nil)
			if err != nil {
				return nil, err
			}

			times, peaks, err := detector.Detect(scores, data.stamps)
			if err != nil {
				return nil, err
			}
			if times == nil {
				return &detected{none: true}, nil
			}
			return &detected{set: &store.ChangepointSet{Times: times, Peaks: peaks}}, nil
		}
	}

	skipped := 0
	var storeErr error
	for res := range p.exec.Submit(ctx, tasks) {
		desc := descs[res.Index]
		if res.Err != nil {
			skipped++
			p.log.Warn("skipping session", logging.Fields{
				"session": desc.UUID.String(), "error": res.Err.Error(),
			})
			continue
		}

		d := res.Value.(*detected)
		if d.none {
			p.log.Warn("no usable changepoint signal for session", logging.Fields{
				"session": desc.UUID.String(),
			})
			continue
		}
		if storeErr != nil {
			continue
		}
		if err := p.store.SaveChangepoints(desc.UUID, d.set); err != nil {
			storeErr = fmt.Errorf("persisting changepoints for %s: %w", desc.UUID, err)
		}
	}

	if storeErr != nil {
		return storeErr
	}
	if skipped > 0 {
		return fmt.Errorf("%w: %d of %d sessions skipped", ErrInterrupted, skipped, len(descs))
	}
	return nil
}

// imputeFromScores overwrites the session's masked pixels with the model
// reconstruction of its previously stored scores, clipped to the configured
// height bounds.
func (p *Pipeline) imputeFromScores(data *sessionData, prior *store.ScoreSet, applier *pca.Applier) error {
	realScores, _ := timegrid.RemoveInserted(&timegrid.Result{
		Scores:     prior.Scores,
		Marker:     prior.Marker,
		Timestamps: prior.Timestamps,
	})

	n, _ := data.matrix.Dims()
	rows, _ := realScores.Dims()
	if rows != n {
		return fmt.Errorf("stored scores cover %d frames, session has %d", rows, n)
	}

	recon, err := applier.Reconstruct(realScores)
	if err != nil {
		return err
	}

	lo, hi := p.cfg.Mask.MinHeight, p.cfg.Mask.MaxHeight
	for i := 0; i < n; i++ {
		src := recon.RawRowView(i)
		dst := data.matrix.RawRowView(i)
		for j, missing := range data.mask[i] {
			if !missing {
				continue
			}
			v := src[j]
			if v < lo || v > hi {
				v = 0
			}
			dst[j] = v
		}
	}
	return nil
}

// ClipScores trims head and tail rows off a session's stored scores in
// place, for recordings with known bad lead-in or lead-out frames.
func (p *Pipeline) ClipScores(session uuid.UUID, head, tail int) error {
	if head < 0 || tail < 0 {
		return fmt.Errorf("clip counts must be non-negative")
	}

	set, err := p.store.Scores(session)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: no stored scores for session %s", ErrMissingArtifact, session)
	}
	if err != nil {
		return err
	}

	n, d := set.Scores.Dims()
	if head+tail >= n {
		return fmt.Errorf("cannot clip %d+%d rows from %d", head, tail, n)
	}

	kept := n - head - tail
	clipped := mat.NewDense(kept, d, nil)
	for i := 0; i < kept; i++ {
		clipped.SetRow(i, set.Scores.RawRowView(head+i))
	}

	out := &store.ScoreSet{
		Scores:     clipped,
		Marker:     append([]float64(nil), set.Marker[head:n-tail]...),
		Timestamps: append([]float64(nil), set.Timestamps[head:n-tail]...),
	}

	p.log.Info("clipped stored scores", logging.Fields{
		"session": session.String(), "head": head, "tail": tail, "kept": kept,
	})
	return p.store.SaveScores(session, out)
}

// loadModel fetches the stored basis, mapping its absence to
// ErrMissingArtifact.
func (p *Pipeline) loadModel() (*pca.Model, error) {
	model, err := p.store.Model()
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: no trained model in store; run train first", ErrMissingArtifact)
	}
	return model, err
}
