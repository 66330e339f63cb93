package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"time"

	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/gekko3d/vizcore"
	"github.com/gekko3d/vizcore/render/device"
	"github.com/gekko3d/vizcore/render/gpu"
	"github.com/go-gl/glfw/v3.3/glfw"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	configPath := flag.String("config", "", "TOML config file")
	headless := flag.Int("headless", 0, "render N frames without a window and exit")
	grid := flag.Int("grid", 5, "data points per side")
	debug := flag.Bool("debug", false, "debug logging")
	flag.Parse()

	if err := run(*configPath, *headless, *grid, *debug); err != nil {
		fmt.Fprintln(os.Stderr, "vizview:", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (vizcore.Config, error) {
	if path == "" {
		return vizcore.DefaultConfig(), nil
	}
	return vizcore.LoadConfig(path)
}

func run(configPath string, headless, grid int, debug bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := cfg.NewLogger()
	if debug {
		logger.SetDebug(true)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if headless > 0 {
		return runHeadless(ctx, cfg, logger, headless, grid)
	}
	return runWindow(ctx, cfg, configPath, logger, grid)
}

func runHeadless(ctx context.Context, cfg vizcore.Config, logger vizcore.Logger, frames, grid int) error {
	var backend *gpu.RecordingBackend
	factory := func() (gpu.Backend, error) {
		backend = gpu.NewRecordingBackend(cfg.Window.Width, cfg.Window.Height)
		return backend, nil
	}
	s, err := vizcore.NewSession(cfg, factory, logger)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := populateDemo(s.Scene(), grid); err != nil {
		return err
	}

	dt := time.Second / 60
	for i := 0; i < frames; i++ {
		if err := s.Frame(ctx, dt); err != nil {
			return err
		}
	}
	st := s.Renderer().Stats()
	p := s.Profiler()
	logger.Infof("headless: %d frames submitted, %d skipped, last frame %d draws %d triangles",
		len(backend.Frames()), st.Skipped, st.Draws, st.Triangles)
	logger.Infof("headless: per frame prepare %v, draw set %v, render %v (%v total)",
		p.Average.Prepare, p.Average.DrawSet, p.Average.Render, p.Average.Total())
	return nil
}

func runWindow(ctx context.Context, cfg vizcore.Config, configPath string, logger vizcore.Logger, grid int) error {
	if err := glfw.Init(); err != nil {
		return err
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	window, err := glfw.CreateWindow(cfg.Window.Width, cfg.Window.Height, cfg.Window.Title, nil, nil)
	if err != nil {
		return err
	}
	defer window.Destroy()

	factory := func() (gpu.Backend, error) {
		w, h := window.GetFramebufferSize()
		d, err := device.New(wgpuglfw.GetSurfaceDescriptor(window), device.Config{
			Width:       w,
			Height:      h,
			PresentMode: cfg.Renderer.PresentMode,
			ClearColor:  cfg.Renderer.ClearColor,
		}, logger)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
	s, err := vizcore.NewSession(cfg, factory, logger)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := populateDemo(s.Scene(), grid); err != nil {
		return err
	}

	if configPath != "" {
		cw, err := vizcore.NewConfigWatcher(configPath, logger, s.QueueConfig)
		if err != nil {
			logger.Warnf("vizview: config hot reload disabled: %v", err)
		} else {
			defer cw.Close()
			go cw.Run(ctx)
		}
	}

	in := newInput(s)
	in.attach(window)

	last := time.Now()
	for !window.ShouldClose() {
		if ctx.Err() != nil {
			break
		}
		glfw.PollEvents()
		now := time.Now()
		if err := s.Frame(ctx, now.Sub(last)); err != nil {
			return err
		}
		last = now
		if p := s.Profiler(); p.FrameCount == 0 && p.FPS > 0 {
			window.SetTitle(fmt.Sprintf("%s (%.0f fps)", cfg.Window.Title, p.FPS))
		}
	}
	return nil
}
