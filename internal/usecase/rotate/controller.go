// Package rotate drives the slow continuous heading rotation of a
// mounted panorama, pausing on user interaction and resuming after an
// idle window. It is a three-state machine: Paused, resume-pending, and
// Rotating.
package rotate

import (
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/panoview/internal/domain"
)

// stepDegrees is the heading advance per animation frame.
const stepDegrees = 0.15

// View is the panorama surface the controller animates.
type View interface {
	Pov() domain.Pov
	SetPov(pov domain.Pov)
}

// Config holds controller timing. Zero values take the production
// defaults (1 s resume delay, 16 ms frame interval).
type Config struct {
	ResumeDelay   time.Duration
	FrameInterval time.Duration
}

// Controller owns the rotation state for exactly one mounted panorama.
// It is recreated per panorama and closed when the view is replaced.
type Controller struct {
	view          View
	resumeDelay   time.Duration
	frameInterval time.Duration
	logger        *zap.Logger

	mu          sync.Mutex
	heading     float64
	rotating    bool
	closed      bool
	selfWrite   bool
	resumeTimer *time.Timer
	stopAnim    chan struct{}
}

// New creates a controller for view. The initial state is Paused; call
// OnReady once the panorama reports a successful load.
func New(view View, cfg Config, logger *zap.Logger) *Controller {
	if cfg.ResumeDelay <= 0 {
		cfg.ResumeDelay = time.Second
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = 16 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		view:          view,
		resumeDelay:   cfg.ResumeDelay,
		frameInterval: cfg.FrameInterval,
		logger:        logger,
	}
}

// OnReady reacts to the panorama's successful "ready" status: rotation
// starts automatically after one resume delay.
func (c *Controller) OnReady() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.pauseLocked()
	c.armResumeLocked()
}

// OnUserMovement pauses rotation immediately and re-arms the resume
// timer. Safe to call at any rate; cancellation of a pending timer is
// idempotent.
func (c *Controller) OnUserMovement() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.pauseLocked()
	c.armResumeLocked()
}

// OnPovChanged observes a point-of-view write on the panorama. Writes
// made by the controller itself are recognized via the reentrancy guard
// and ignored; anything else is user interaction and pauses rotation
// from the observed heading.
func (c *Controller) OnPovChanged(pov domain.Pov) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.selfWrite {
		return
	}
	c.heading = pov.Heading
	c.pauseLocked()
	c.armResumeLocked()
}

// Rotating reports whether the heading is currently advancing.
func (c *Controller) Rotating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rotating
}

// Heading returns the controller's current heading in [0,360).
func (c *Controller) Heading() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.heading
}

// Close tears the controller down: the animation loop stops, the pending
// resume timer is cancelled, and further events are ignored. Idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.pauseLocked()
}

// pauseLocked stops the animation loop and cancels any pending resume,
// capturing the displayed heading so a later resume continues from it.
func (c *Controller) pauseLocked() {
	c.rotating = false
	if c.stopAnim != nil {
		close(c.stopAnim)
		c.stopAnim = nil
	}
	c.cancelResumeLocked()
	c.heading = c.view.Pov().Heading
}

// cancelResumeLocked clears the pending resume timer. Nil-safe and
// idempotent: a second movement event racing the first timer is handled
// by clear-then-re-arm.
func (c *Controller) cancelResumeLocked() {
	if c.resumeTimer != nil {
		c.resumeTimer.Stop()
		c.resumeTimer = nil
	}
}

func (c *Controller) armResumeLocked() {
	c.cancelResumeLocked()
	c.resumeTimer = time.AfterFunc(c.resumeDelay, c.resume)
}

// resume transitions to Rotating from whatever heading is currently
// displayed; heading continuity across pause/resume cycles is required.
func (c *Controller) resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.rotating {
		return
	}
	c.heading = c.view.Pov().Heading
	c.rotating = true
	stop := make(chan struct{})
	c.stopAnim = stop
	go c.animate(stop)
}

func (c *Controller) animate(stop chan struct{}) {
	ticker := time.NewTicker(c.frameInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.step()
		}
	}
}

// step advances the heading one frame. The write goes to the view with
// the reentrancy guard raised so the controller's own OnPovChanged
// observation does not read as user interaction.
func (c *Controller) step() {
	c.mu.Lock()
	if !c.rotating || c.closed {
		c.mu.Unlock()
		return
	}
	c.heading = math.Mod(c.heading+stepDegrees, 360)
	pov := domain.Pov{Heading: c.heading, Pitch: c.view.Pov().Pitch}
	c.selfWrite = true
	c.mu.Unlock()

	c.view.SetPov(pov)

	c.mu.Lock()
	c.selfWrite = false
	c.mu.Unlock()
}
