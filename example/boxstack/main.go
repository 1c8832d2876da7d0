// Command boxstack drops a stack of boxes on a floor and reports where they
// come to rest. The solver parameters can be read from a TOML, YAML or JSON
// file, reloaded live, and the contacts streamed to a websocket viewer.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/akmonengine/anvil"
	"github.com/akmonengine/anvil/actor"
	"github.com/akmonengine/anvil/collider"
	"github.com/akmonengine/anvil/debugdraw"
	"github.com/akmonengine/anvil/halfedge"
	"github.com/go-gl/mathgl/mgl64"
)

func main() {
	var (
		configPath = flag.String("config", "", "parameters file (.toml, .yaml, .yml or .json)")
		watch      = flag.Bool("watch", false, "reload the parameters file when it changes")
		frames     = flag.Int("frames", 600, "number of steps to simulate")
		layers     = flag.Int("layers", 5, "number of boxes in the stack")
		realtime   = flag.Bool("realtime", false, "pace the steps to the timestep")
		debugAddr  = flag.String("debug-addr", "", "serve contact snapshots over websocket on this address")
		verbose    = flag.Bool("v", false, "log debug messages")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(*configPath, *watch, *frames, *layers, *realtime, *debugAddr, logger); err != nil {
		logger.Error("boxstack failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(configPath string, watch bool, frames, layers int, realtime bool, debugAddr string, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	params := anvil.DefaultParameters()
	if configPath != "" {
		var err error
		if params, err = anvil.LoadParameters(configPath); err != nil {
			return err
		}
	}

	world, err := anvil.NewWorld(params, collider.NewStore(logger), logger)
	if err != nil {
		return err
	}
	if err = buildScene(world, layers); err != nil {
		return err
	}

	world.Events.Subscribe(anvil.COLLISION_ENTER, func(event anvil.Event) {
		e := event.(anvil.CollisionEnterEvent)
		logger.Info("contact", slog.Any("a", e.EntityA), slog.Any("b", e.EntityB))
	})
	world.Events.Subscribe(anvil.COLLISION_EXIT, func(event anvil.Event) {
		e := event.(anvil.CollisionExitEvent)
		logger.Info("separation", slog.Any("a", e.EntityA), slog.Any("b", e.EntityB))
	})
	world.Events.Subscribe(anvil.TRIGGER_ENTER, func(event anvil.Event) {
		e := event.(anvil.TriggerEnterEvent)
		logger.Info("sensor entered", slog.Any("a", e.EntityA), slog.Any("b", e.EntityB))
	})
	world.Events.Subscribe(anvil.TRIGGER_EXIT, func(event anvil.Event) {
		e := event.(anvil.TriggerExitEvent)
		logger.Info("sensor left", slog.Any("a", e.EntityA), slog.Any("b", e.EntityB))
	})
	world.Events.Subscribe(anvil.ON_SLEEP, func(event anvil.Event) {
		logger.Debug("asleep", slog.Any("entity", event.(anvil.SleepEvent).Entity))
	})

	// reloaded parameters are handed over to the stepping loop
	reloads := make(chan anvil.Parameters, 1)
	if watch && configPath != "" {
		go func() {
			err := anvil.WatchParameters(ctx, configPath, logger, func(p anvil.Parameters) {
				select {
				case reloads <- p:
				default:
				}
			})
			if err != nil {
				logger.Warn("parameters watcher stopped", slog.Any("error", err))
			}
		}()
	}

	var server *debugdraw.Server
	if debugAddr != "" {
		server = debugdraw.NewServer(logger)
		httpServer := &http.Server{Addr: debugAddr, Handler: server, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("debug server", slog.Any("error", err))
			}
		}()
		defer func() {
			server.Close()
			_ = httpServer.Close()
		}()
		logger.Info("streaming contacts", slog.String("addr", debugAddr))
	}

	var ticker *time.Ticker
	if realtime {
		ticker = time.NewTicker(stepPeriod(world.Parameters))
		defer ticker.Stop()
	}

	for frame := 0; frame < frames; frame++ {
		select {
		case <-ctx.Done():
			logger.Info("interrupted", slog.Int("frame", frame))
			report(world, logger)
			return nil
		case p := <-reloads:
			if err := world.SetParameters(p); err != nil {
				logger.Warn("reloaded parameters rejected", slog.Any("error", err))
			} else if ticker != nil {
				ticker.Reset(stepPeriod(world.Parameters))
			}
		default:
		}

		world.Step()

		if server != nil {
			snapshot := debugdraw.Capture(uint64(frame), world.Bodies, world.Contacts, 0.25, 1)
			if err := server.Broadcast(snapshot); err != nil {
				logger.Warn("snapshot broadcast", slog.Any("error", err))
			}
		}

		if ticker != nil {
			select {
			case <-ticker.C:
			case <-ctx.Done():
			}
		}
	}

	report(world, logger)
	return nil
}

// buildScene places a static floor, a stack of unit boxes slightly offset
// from each other, a tetrahedron on top and a sensor volume around the base
// of the stack
func buildScene(world *anvil.World, layers int) error {
	floorExtents := mgl64.Vec3{10, 0.5, 10}
	floorVertices, floorTriangles := halfedge.GridBoxSoup(floorExtents, 4)
	floorHandle, err := world.Colliders.Load("floor", floorVertices, floorTriangles)
	if err != nil {
		return err
	}
	floor := actor.NewRigidBody(actor.Transform{Position: mgl64.Vec3{0, -0.5, 0}}, actor.BodyTypeStatic, 0, mgl64.Mat3{})
	if err = world.AddBody(1, floor, floorHandle); err != nil {
		return err
	}

	boxExtents := mgl64.Vec3{0.5, 0.5, 0.5}
	boxVertices, boxTriangles := halfedge.BoxSoup(boxExtents)
	boxMass := actor.BoxMass(boxExtents, 1)

	for layer := 0; layer < layers; layer++ {
		handle, err := world.Colliders.Load("box", boxVertices, boxTriangles)
		if err != nil {
			return err
		}

		position := mgl64.Vec3{0.05 * float64(layer%2), 0.5 + float64(layer)*1.01, 0}
		box := actor.NewRigidBody(actor.Transform{Position: position}, actor.BodyTypeDynamic, boxMass, actor.BoxInertia(boxExtents, boxMass))
		if err = world.AddBody(actor.EntityID(layer+2), box, handle); err != nil {
			return err
		}
	}

	tetraVertices, tetraTriangles := halfedge.TetrahedronSoup(0.4)
	tetraHandle, err := world.Colliders.Load("tetrahedron", tetraVertices, tetraTriangles)
	if err != nil {
		return err
	}
	tetraExtents := mgl64.Vec3{0.4, 0.4, 0.4}
	tetraMass := actor.BoxMass(tetraExtents, 1) / 3
	tetra := actor.NewRigidBody(
		actor.Transform{Position: mgl64.Vec3{0, 0.5 + float64(layers)*1.01 + 0.5, 0}},
		actor.BodyTypeDynamic,
		tetraMass,
		actor.BoxInertia(tetraExtents, tetraMass),
	)
	tetra.Friction = 0.8
	if err = world.AddBody(actor.EntityID(layers+2), tetra, tetraHandle); err != nil {
		return err
	}

	sensorExtents := mgl64.Vec3{2, 0.25, 2}
	sensorVertices, sensorTriangles := halfedge.BoxSoup(sensorExtents)
	sensorHandle, err := world.Colliders.Load("sensor", sensorVertices, sensorTriangles)
	if err != nil {
		return err
	}
	sensor := actor.NewRigidBody(actor.Transform{Position: mgl64.Vec3{0, 0.25, 0}}, actor.BodyTypeStatic, 0, mgl64.Mat3{})
	sensor.IsTrigger = true

	return world.AddBody(actor.EntityID(layers+3), sensor, sensorHandle)
}

func report(world *anvil.World, logger *slog.Logger) {
	logger.Info("world", slog.String("state", world.String()))
	for i, id := range world.Bodies.Entities {
		if world.Bodies.IsStatic(i) {
			continue
		}
		p := world.Bodies.Positions[i]
		logger.Info("body",
			slog.Any("entity", id),
			slog.String("position", fmt.Sprintf("(%.3f, %.3f, %.3f)", p.X(), p.Y(), p.Z())),
			slog.String("velocity", fmt.Sprintf("%.4f", world.Bodies.LinearVelocity(i).Len())))
	}
}

// stepPeriod is the wall time of one step when pacing to real time
func stepPeriod(params anvil.Parameters) time.Duration {
	return max(time.Duration(params.Timestep*float64(time.Second)), time.Nanosecond)
}
