// Package browser drives a game client hosted in a web page through Chrome.
package browser

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/agentstation/operation"
)

// Labeler recognizes elements on a captured image. It is the hook for a
// template matcher or OCR engine.
type Labeler func(ctx context.Context, img image.Image) (map[string]any, error)

type options struct {
	headless bool
	width    int
	height   int
	labeler  Labeler
	steps    int
}

// Option configures a Browser.
type Option func(*options)

// WithHeadless toggles headless mode. Defaults to true.
func WithHeadless(headless bool) Option {
	return func(o *options) {
		o.headless = headless
	}
}

// WithWindowSize sets the browser window size. Defaults to 1280x720.
func WithWindowSize(width, height int) Option {
	return func(o *options) {
		o.width = width
		o.height = height
	}
}

// WithLabeler sets the recognizer run on every screenshot.
func WithLabeler(l Labeler) Option {
	return func(o *options) {
		o.labeler = l
	}
}

// Browser is an operation.Screen and operation.Input over one Chrome tab.
type Browser struct {
	ctx     context.Context
	cancel  context.CancelFunc
	labeler Labeler
	steps   int
}

// New starts Chrome and opens url.
func New(ctx context.Context, url string, opts ...Option) (*Browser, error) {
	o := &options{headless: true, width: 1280, height: 720, steps: 10}
	for _, opt := range opts {
		opt(o)
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", o.headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.WindowSize(o.width, o.height),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	b := &Browser{
		ctx: tabCtx,
		cancel: func() {
			tabCancel()
			allocCancel()
		},
		labeler: o.labeler,
		steps:   o.steps,
	}
	if err := chromedp.Run(tabCtx, chromedp.Navigate(url)); err != nil {
		b.cancel()
		return nil, fmt.Errorf("open %s: %w", url, err)
	}
	return b, nil
}

// Close shuts the browser down.
func (b *Browser) Close() {
	b.cancel()
}

// run executes actions on the tab, giving up when either ctx or the browser
// context ends.
func (b *Browser) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(b.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

// Screenshot implements operation.Screen.
func (b *Browser) Screenshot(ctx context.Context) (*operation.Frame, error) {
	var buf []byte
	if err := b.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	img, err := png.Decode(bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}

	frame := &operation.Frame{Image: img, Captured: time.Now(), Labels: map[string]any{}}
	if b.labeler != nil {
		labels, err := b.labeler(ctx, img)
		if err != nil {
			return nil, fmt.Errorf("label screenshot: %w", err)
		}
		frame.Labels = labels
	}
	return frame, nil
}

// Click implements operation.Input.
func (b *Browser) Click(ctx context.Context, x, y int) error {
	return b.run(ctx, chromedp.MouseClickXY(float64(x), float64(y)))
}

// Press implements operation.Input. Common key names such as "esc" or
// "enter" are translated; anything else is typed as is.
func (b *Browser) Press(ctx context.Context, key string) error {
	return b.run(ctx, chromedp.KeyEvent(keyName(key)))
}

// Swipe implements operation.Input as a left-button drag.
func (b *Browser) Swipe(ctx context.Context, fromX, fromY, toX, toY int, duration time.Duration) error {
	actions := []chromedp.Action{
		chromedp.MouseEvent(input.MousePressed, float64(fromX), float64(fromY),
			chromedp.ButtonLeft, chromedp.ClickCount(1)),
	}
	pause := duration / time.Duration(b.steps)
	for _, p := range interpolate(fromX, fromY, toX, toY, b.steps) {
		actions = append(actions,
			chromedp.Sleep(pause),
			chromedp.MouseEvent(input.MouseMoved, p[0], p[1], chromedp.ButtonLeft),
		)
	}
	actions = append(actions,
		chromedp.MouseEvent(input.MouseReleased, float64(toX), float64(toY),
			chromedp.ButtonLeft, chromedp.ClickCount(1)),
	)
	return b.run(ctx, actions...)
}

// interpolate returns steps evenly spaced points after the start, ending on
// the target.
func interpolate(fromX, fromY, toX, toY, steps int) [][2]float64 {
	if steps < 1 {
		steps = 1
	}
	out := make([][2]float64, steps)
	for i := 1; i <= steps; i++ {
		t := float64(i) / float64(steps)
		out[i-1] = [2]float64{
			float64(fromX) + t*float64(toX-fromX),
			float64(fromY) + t*float64(toY-fromY),
		}
	}
	return out
}

var keys = map[string]string{
	"esc":       kb.Escape,
	"escape":    kb.Escape,
	"enter":     kb.Enter,
	"tab":       kb.Tab,
	"backspace": kb.Backspace,
	"space":     " ",
	"up":        kb.ArrowUp,
	"down":      kb.ArrowDown,
	"left":      kb.ArrowLeft,
	"right":     kb.ArrowRight,
}

func keyName(key string) string {
	if k, ok := keys[strings.ToLower(key)]; ok {
		return k
	}
	return key
}
