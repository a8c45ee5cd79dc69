package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/png"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/image/colornames"

	"github.com/cs3238-tsuzu/movesync-online/internal/config"
	"github.com/cs3238-tsuzu/movesync-online/internal/logger"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	resources "github.com/hajimehoshi/ebiten/v2/examples/resources/images/flappy"
)

const (
	screenWidth  = 640
	screenHeight = 480
)

var remoteTints = []color.Color{
	colornames.Tomato,
	colornames.Gold,
	colornames.Mediumseagreen,
	colornames.Orchid,
	colornames.Deepskyblue,
	colornames.Sandybrown,
}

func loadGopher() (*ebiten.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(resources.Gopher_png))
	if err != nil {
		return nil, fmt.Errorf("decode gopher image: %w", err)
	}

	return ebiten.NewImageFromImage(img), nil
}

type Game struct {
	ctx    context.Context
	client *Client
	log    *zap.Logger

	me      *Avatar
	others  []*Avatar
	focused bool
}

func NewGame(ctx context.Context, client *Client, log *zap.Logger) (*Game, error) {
	gopher, err := loadGopher()
	if err != nil {
		return nil, err
	}

	g := &Game{
		ctx:     ctx,
		client:  client,
		log:     log,
		me:      NewAvatar(gopher, colornames.White),
		focused: true,
	}
	for _, tint := range remoteTints {
		g.others = append(g.others, NewAvatar(gopher, tint))
	}

	return g, nil
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return screenWidth, screenHeight
}

func (g *Game) Update() error {
	if g.ctx.Err() != nil {
		return ebiten.Termination
	}

	focused := ebiten.IsFocused()
	if !focused && g.focused {
		g.client.Input().Reset()
		g.log.Debug("focus lost, input released")
	}
	g.focused = focused

	if focused {
		applyKeyEdges(g.client.Input())
	}

	return g.client.Tick(g.ctx)
}

func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(colornames.Lightslategray)

	for i, p := range g.client.Remote() {
		g.others[i%len(g.others)].Draw(screen, p)
	}
	me := g.client.Local()
	g.me.Draw(screen, me)

	ebitenutil.DebugPrint(screen, fmt.Sprintf("TPS: %0.2f\n%s\nx=%.2f y=%.2f",
		ebiten.ActualTPS(), g.client.State(), me.X, me.Y))
}

// runHeadless ticks without a window, sending only heartbeat batches.
func runHeadless(ctx context.Context, client *Client, cfg config.Client) error {
	ticker := time.NewTicker(time.Second / time.Duration(cfg.TPS))
	defer ticker.Stop()

	for n := 0; cfg.Ticks == 0 || n < cfg.Ticks; n++ {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if err := client.Tick(ctx); err != nil {
			return err
		}
	}

	return nil
}

func main() {
	cfg, err := config.LoadClient(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log, err := logger.New(logger.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := NewClient(ctx, cfg, log)
	if err != nil {
		log.Fatal("cannot start", zap.Error(err))
	}
	defer func() {
		log.Info("stats", zap.Object("stats", client.Stats()))
		if err := client.Close(); err != nil {
			log.Warn("close failed", zap.Error(err))
		}
	}()

	if cfg.Headless {
		err = runHeadless(ctx, client, cfg)
	} else {
		var game *Game
		game, err = NewGame(ctx, client, log)
		if err == nil {
			ebiten.SetWindowSize(screenWidth, screenHeight)
			ebiten.SetWindowTitle("Movesync Online")
			err = ebiten.RunGame(game)
		}
	}

	if err != nil && !errors.Is(err, ebiten.Termination) {
		log.Error("client stopped", zap.Error(err))
	}
}
