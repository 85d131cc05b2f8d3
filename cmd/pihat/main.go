package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/lucasb-eyer/go-colorful"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/ivlev/pihat/internal/board"
	"github.com/ivlev/pihat/internal/config"
	"github.com/ivlev/pihat/internal/engine"
	"github.com/ivlev/pihat/internal/hal"
	"github.com/ivlev/pihat/internal/logging"
	"github.com/ivlev/pihat/internal/preview"
	"github.com/ivlev/pihat/internal/source"
	"github.com/ivlev/pihat/internal/system"
	"github.com/ivlev/pihat/internal/video"
)

var errQuit = errors.New("stopped by user")

type qrFlag []string

func (q *qrFlag) String() string     { return strings.Join(*q, ",") }
func (q *qrFlag) Set(v string) error { *q = append(*q, v); return nil }

func main() {
	configPtr := flag.String("config", "", "YAML config (defaults: Display HAT Mini wiring)")
	inputPtr := flag.String("input", "", "PDF, image or folder of images (default: newest file in input/)")
	driverPtr := flag.String("driver", "", "Display: st7789, terminal, preview, record")
	effectPtr := flag.String("effect", "", "Transition: crossfade, dissolve, sweep, pan, cut")
	directionPtr := flag.String("direction", "", "Sweep direction: left, right, top, bottom, ...")
	transitionPtr := flag.Duration("transition", 0, "Transition length, e.g. 800ms")
	dwellPtr := flag.Duration("dwell", 0, "How long each slide stays on screen")
	fpsPtr := flag.Int("fps", 0, "Frames per second for transitions")
	loopPtr := flag.Bool("loop", false, "Start over after the last slide")
	statsPtr := flag.Bool("stats", false, "Print a performance report on exit")
	levelPtr := flag.String("log-level", "", "Log level: debug, info, warn, error, none")
	jsonPtr := flag.Bool("json-log", false, "Log as JSON")
	listenPtr := flag.String("listen", "", "Preview address, e.g. :8080")
	outputPtr := flag.String("output", "", "Video file for the record driver")
	dumpPtr := flag.String("dump-config", "", "Write the resulting config to this file and exit")
	var qr qrFlag
	flag.Var(&qr, "qr", "Add a QR code slide with this text (repeatable)")

	flag.Parse()

	cfg := config.Default()
	if *configPtr != "" {
		loaded, err := config.Load(*configPtr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[-] Config error: %v\n", err)
			os.Exit(2)
		}
		cfg = loaded
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "input":
			cfg.Slideshow.Input = *inputPtr
		case "driver":
			cfg.Display.Driver = *driverPtr
		case "effect":
			cfg.Slideshow.Transition.Effect = *effectPtr
		case "direction":
			cfg.Slideshow.Transition.Direction = *directionPtr
		case "transition":
			cfg.Slideshow.Transition.Duration = *transitionPtr
		case "dwell":
			cfg.Slideshow.Dwell = *dwellPtr
		case "fps":
			cfg.Display.FPS = *fpsPtr
		case "loop":
			cfg.Slideshow.Loop = *loopPtr
		case "stats":
			cfg.ShowStats = *statsPtr
		case "log-level":
			cfg.Logging.Level = *levelPtr
		case "json-log":
			cfg.Logging.JSON = *jsonPtr
		case "listen":
			cfg.Display.Preview.Listen = *listenPtr
		case "output":
			cfg.Display.Record.Output = *outputPtr
		case "qr":
			cfg.Slideshow.QR = append(cfg.Slideshow.QR, qr...)
		}
	})

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "[-] Invalid settings:\n%v\n", err)
		os.Exit(2)
	}

	if *dumpPtr != "" {
		if err := config.Write(cfg, *dumpPtr); err != nil {
			fmt.Fprintf(os.Stderr, "[-] %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("[*] Config saved: %s\n", *dumpPtr)
		return
	}

	// The terminal driver owns the screen, so logs go to a file instead.
	var logOut io.Writer
	if cfg.Display.Driver == config.DriverTerminal {
		f, err := os.OpenFile("pihat.log", os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[!] Cannot open pihat.log: %v\n", err)
			logOut = io.Discard
		} else {
			defer f.Close()
			logOut = f
		}
	}
	if _, err := logging.Setup(cfg.Logging, logOut); err != nil {
		fmt.Fprintf(os.Stderr, "[-] %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep, err := run(ctx, cfg)
	if cfg.ShowStats {
		rep.Print(os.Stdout, system.Probe(200*time.Millisecond))
	}
	if err != nil && !errors.Is(err, errQuit) && !errors.Is(err, hal.ErrCancelled) {
		log.WithError(err).Error("slideshow failed")
		fmt.Fprintf(os.Stderr, "[-] Slideshow failed: %v\n", err)
		os.Exit(1)
	}
}

func openSource(cfg config.Slideshow) (source.Source, error) {
	var srcs []source.Source
	input := cfg.Input
	if input == "" && len(cfg.QR) == 0 {
		latest, err := system.FindLatest("input", system.ImageExtensions...)
		if err != nil {
			return nil, fmt.Errorf("%w. Put a PDF or images into input/", err)
		}
		input = latest
		fmt.Printf("[*] Selected file: %s\n", input)
	}
	if input != "" {
		src, err := source.Open(input)
		if err != nil {
			return nil, err
		}
		srcs = append(srcs, src)
	}
	for _, text := range cfg.QR {
		q, err := source.NewQRSource(text)
		if err != nil {
			for _, s := range srcs {
				s.Close()
			}
			return nil, err
		}
		srcs = append(srcs, q)
	}
	return source.Join(srcs...), nil
}

// openBoard returns the board for the configured driver plus any service
// that has to run next to the slideshow.
func openBoard(cfg *config.Config) (*board.Board, func(context.Context) error, error) {
	d := cfg.Display
	switch d.Driver {
	case config.DriverST7789:
		b, err := board.OpenDisplayHATMini(cfg)
		return b, nil, err

	case config.DriverTerminal:
		screen, err := tcell.NewScreen()
		if err != nil {
			return nil, nil, &hal.DisplayError{Kind: hal.ErrDisplayInit, Err: err}
		}
		if err := screen.Init(); err != nil {
			return nil, nil, &hal.DisplayError{Kind: hal.ErrDisplayInit, Err: err}
		}
		b, err := board.OpenTerminal(cfg, screen)
		if err != nil {
			screen.Fini()
		}
		return b, nil, err

	case config.DriverPreview:
		srv := preview.NewServer(d.Width, d.Height, d.Preview.Quality)
		serve := func(ctx context.Context) error {
			return srv.ListenAndServe(ctx, d.Preview.Listen)
		}
		fmt.Printf("[*] Preview: http://localhost%s/\n", d.Preview.Listen)
		return board.Headless(srv, srv.Close), serve, nil

	case config.DriverRecord:
		encoder := d.Record.Encoder
		if encoder == "" || encoder == "auto" {
			encoder = system.BestH264Encoder()
		}
		// ffmpeg must outlive a cancelled run to finish the file.
		rec, err := video.StartFFmpeg(context.Background(), d.Record.Output, d.Width, d.Height, d.FPS, encoder, d.Record.Quality, nil)
		if err != nil {
			return nil, nil, err
		}
		fmt.Printf("[*] Recording to %s with %s\n", d.Record.Output, encoder)
		return board.Headless(rec, rec.Close), nil, nil
	}
	return nil, nil, hal.InvalidInput("display.driver", d.Driver)
}

func run(ctx context.Context, cfg *config.Config) (engine.Report, error) {
	log.WithFields(system.Probe(0).Fields()).Debug("host")

	src, err := openSource(cfg.Slideshow)
	if err != nil {
		return engine.Report{}, err
	}
	defer src.Close()

	fmt.Println("--- [PIHAT SLIDESHOW] ---")
	fmt.Printf("[*] Pages: %d | Display: %s %dx%d @ %d FPS\n",
		src.PageCount(), cfg.Display.Driver, cfg.Display.Width, cfg.Display.Height, cfg.Display.FPS)
	fmt.Println("-------------------------")

	b, service, err := openBoard(cfg)
	if err != nil {
		return engine.Report{}, err
	}
	defer b.Close()

	busy := make(chan bool, 1)
	player, err := engine.NewPlayer(b.Display, src, cfg.Slideshow, cfg.Display.FPS,
		engine.OnBusy(func(v bool) {
			select {
			case <-busy:
			default:
			}
			busy <- v
		}))
	if err != nil {
		return engine.Report{}, err
	}

	g, gctx := errgroup.WithContext(ctx)
	var rep engine.Report

	g.Go(func() error {
		var err error
		rep, err = player.Run(gctx)
		if err == nil {
			log.Info("slideshow finished")
			return errQuit
		}
		return err
	})

	g.Go(func() error { return driveLED(gctx, b, cfg.LED, busy) })

	if service != nil {
		g.Go(func() error { return service(gctx) })
	}

	if b.A != nil {
		g.Go(func() error {
			for range b.A.Clicks(gctx) {
				log.Debug("next slide")
				player.Next()
			}
			return nil
		})
	}
	if b.B != nil {
		g.Go(func() error {
			steps := max(int(cfg.LED.Fade/(20*time.Millisecond)), 1)
			for range b.B.Clicks(gctx) {
				err := b.Backlight.Toggle(gctx, steps, cfg.LED.Fade)
				if err != nil && !errors.Is(err, hal.ErrCancelled) {
					return err
				}
				log.WithField("on", b.Backlight.Enabled()).Debug("backlight")
			}
			return nil
		})
	}
	if b.Y != nil {
		g.Go(func() error {
			if err := b.Y.PressedAndReleased(gctx, 0); err != nil {
				if gctx.Err() != nil {
					return nil
				}
				return err
			}
			return errQuit
		})
	}
	if b.Quit != nil {
		g.Go(func() error {
			select {
			case <-b.Quit:
				return errQuit
			case <-gctx.Done():
				return nil
			}
		})
	}

	err = g.Wait()
	if errors.Is(err, errQuit) {
		err = nil
	}
	return rep, err
}

// driveLED fades the LED to the busy colour while a transition runs and
// back to idle after.
func driveLED(ctx context.Context, b *board.Board, cfg config.LED, busy <-chan bool) error {
	idle, err := colorful.Hex(cfg.Idle)
	if err != nil {
		return err
	}
	active, err := colorful.Hex(cfg.Busy)
	if err != nil {
		return err
	}
	defer b.LED.Set(idle)

	steps := max(int(cfg.Fade/(20*time.Millisecond)), 1)
	for {
		select {
		case <-ctx.Done():
			return nil
		case v := <-busy:
			target := idle
			if v {
				target = active
			}
			if cfg.Fade <= 0 {
				if _, err := b.LED.Set(target); err != nil {
					return err
				}
				continue
			}
			err := b.LED.TransitionTo(ctx, target, steps, cfg.Fade)
			if err != nil && !errors.Is(err, hal.ErrCancelled) {
				return err
			}
		}
	}
}
