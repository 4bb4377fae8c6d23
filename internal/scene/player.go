package scene

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/rtsync/internal/frame"
	"github.com/Faultbox/rtsync/internal/light"
	"github.com/Faultbox/rtsync/internal/rtdata"
	"github.com/Faultbox/rtsync/internal/upload"
)

// Params returns the sun as light parameters.
func (s *SunSpec) Params() rtdata.LightParams {
	return light.Sun(s.Longitude, s.Latitude, [3]float32(s.Color), s.Intensity)
}

// Player feeds a script into its own synchronizer one frame at a time.
type Player struct {
	script *Script
	sync   *frame.Synchronizer
	log    *zap.Logger

	next   int // index into script.Frames
	repeat int // idle frames left before next
	sun    *SunSpec
}

// NewPlayer creates a synchronizer pushing to ch, with the script as its
// MeshSource and the script's sun as its primary light, and positions the
// player before the first frame.
func NewPlayer(script *Script, cfg frame.Config, ch upload.Channel, log *zap.Logger) *Player {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Player{script: script, log: log, sun: script.Sun}
	cfg.Meshes = script
	cfg.PrimaryLight = p
	p.sync = frame.New(cfg, ch, log)

	pos, view, proj := script.Camera.Matrices()
	p.sync.SetCamera(pos, view, proj)
	return p
}

// Sync returns the synchronizer the player drives.
func (p *Player) Sync() *frame.Synchronizer {
	return p.sync
}

// PrimaryLight reports the script's current sun.
func (p *Player) PrimaryLight() (rtdata.LightKey, rtdata.LightParams, bool) {
	if p.sun == nil {
		return 0, rtdata.LightParams{}, false
	}
	return rtdata.LightKey(p.sun.Key), p.sun.Params(), true
}

// Done reports whether every scripted frame was played.
func (p *Player) Done() bool {
	return p.repeat == 0 && p.next >= len(p.script.Frames)
}

// Step applies the next frame's events and runs one frame boundary. Past
// the end of the script it runs idle frames. The returned error combines
// the events the synchronizer refused; the frame still runs.
func (p *Player) Step() (frame.Report, error) {
	var errs error
	switch {
	case p.repeat > 0:
		p.repeat--
	case p.next < len(p.script.Frames):
		f := p.script.Frames[p.next]
		p.next++
		p.repeat = f.Repeat
		errs = p.apply(&f)
	}
	return p.sync.OnFrameBoundary(), errs
}

func (p *Player) apply(f *FrameSpec) error {
	if f.Camera != nil {
		pos, view, proj := f.Camera.Matrices()
		p.sync.SetCamera(pos, view, proj)
	}
	if f.Sun != nil {
		p.sun = f.Sun
	}

	var errs error
	for i := range f.Events {
		ev := &f.Events[i]
		if err := p.event(ev); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", ev.Op, err))
		}
	}
	return errs
}

func (p *Player) event(ev *Event) error {
	inst := rtdata.InstanceKey(ev.Instance)
	switch ev.Op {
	case OpRegister:
		key := rtdata.GeometryKey(ev.Geometry)
		mesh, _ := p.script.Mesh(key)
		_, err := p.sync.RegisterGeometry(key, mesh)
		return err
	case OpActivate:
		return p.sync.OnInstanceActivated(inst, rtdata.GeometryKey(ev.Geometry), ev.Matrix())
	case OpDeactivate:
		p.sync.OnInstanceDeactivated(inst)
	case OpMove:
		return p.sync.OnInstanceTransformChanged(inst, ev.Matrix())
	case OpLight:
		params, err := ev.Params.Params()
		if err != nil {
			return err
		}
		return p.sync.OnLightChanged(rtdata.LightKey(ev.Light), params)
	case OpRemoveLight:
		p.sync.OnLightRemoved(rtdata.LightKey(ev.Light))
	}
	return nil
}

// Stats totals a Run.
type Stats struct {
	Frames          int
	GeometryUploads int
	Created         int
	Updated         int
	Removed         int
	LightUpdates    int
	Failures        int
}

// Run plays n frames, or the whole script when n <= 0. Event and frame
// failures are logged and combined into the returned error; playback
// continues past them.
func (p *Player) Run(ctx context.Context, n int) (Stats, error) {
	if n <= 0 {
		n = p.script.FrameCount()
	}

	var (
		st   Stats
		errs error
	)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return st, multierr.Append(errs, err)
		}

		rep, err := p.Step()
		if err != nil {
			p.log.Warn("Scene events rejected", zap.Uint64("frame", rep.Frame), zap.Error(err))
			errs = multierr.Append(errs, err)
		}
		errs = multierr.Append(errs, rep.Err())

		st.Frames++
		st.GeometryUploads += rep.GeometryUploads
		st.Created += rep.Created
		st.Updated += rep.Updated
		st.Removed += rep.Removed
		st.LightUpdates += rep.LightUpdates
		st.Failures += len(rep.Failures)
		p.log.Debug("Scene frame", rep.Fields()...)
	}
	return st, errs
}
