package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/blockverse/internal/client"
	"github.com/annel0/blockverse/internal/network"
	"github.com/annel0/blockverse/internal/physics"
	"github.com/annel0/blockverse/internal/protocol"
	"github.com/annel0/blockverse/internal/world/block"
)

// Безголовый клиент: ходит по кругу, копает блок под прицелом и
// периодически ставит его обратно. Используется для нагрузочной проверки сервера.
func main() {
	var (
		addr      = flag.String("addr", "localhost:7777", "Server address")
		transport = flag.String("transport", network.TransportTCP, "Transport: tcp, kcp, ws")
		step      = flag.Duration("step", 50*time.Millisecond, "Client step interval")
		duration  = flag.Duration("duration", 0, "Stop after this long (0 = until interrupted)")
		turn      = flag.Float64("turn", 0.02, "Yaw change per step, radians")
		mineEvery = flag.Int("mine-every", 40, "Mine the targeted block every N steps (0 = never)")
		pitch     = flag.Float64("pitch", -0.5, "View pitch, radians")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	c, err := client.Dial(ctx, *transport, *addr)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	fmt.Printf("Connected to %s over %s\n", *addr, *transport)

	runErr := make(chan error, 1)
	go func() { runErr <- c.Run(ctx) }()

	ticker := time.NewTicker(*step)
	defer ticker.Stop()
	report := time.NewTicker(time.Second)
	defer report.Stop()

	var (
		yaw   float64
		steps int
		acted int
	)
	for {
		select {
		case err := <-runErr:
			st := c.State()
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
				fmt.Fprintf(os.Stderr, "Session ended: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Session ended at tick %d: %s\n", st.Tick, st.Reason)
			return

		case <-report.C:
			st := c.State()
			fmt.Printf("tick=%d pos=(%.2f, %.2f, %.2f) entities=%d chunks=%d dropped=%d acted=%d\n",
				st.Tick,
				st.Position.X.Float(), st.Position.Y.Float(), st.Position.Z.Float(),
				len(st.Entities), st.Chunks, st.ChunksDropped, acted)

		case <-ticker.C:
			steps++
			yaw = math.Mod(yaw+*turn, 2*math.Pi)
			input := physics.Input{Forward: true, Yaw: yaw, Jump: steps%25 == 0}

			var actions []protocol.Action
			if *mineEvery > 0 && steps%*mineEvery == 0 {
				if origin, dir, ok := c.Eye(); ok {
					mode, id := protocol.EditMine, block.AirBlockID
					if (steps / *mineEvery)%2 == 0 {
						mode, id = protocol.EditPlace, block.DirtBlockID
					}
					if _, hit := c.Target(8); hit {
						actions = append(actions, protocol.Action{Origin: origin, Dir: dir, Mode: mode, Block: id})
						acted++
					}
				}
			}

			c.Step(input, *pitch, *step, nil, actions)
		}
	}
}
