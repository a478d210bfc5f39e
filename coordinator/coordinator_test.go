package coordinator

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"fractalexplorer/fractal"
	"fractalexplorer/misc"
	"fractalexplorer/task"
	"fractalexplorer/worker"
)

func TestCoordinatorMethods(t *testing.T) {
	g := testGenerator(t, -1, task.Image)
	c := NewCoordinator(Settings{TaskTimeoutMilliseconds: 20}, g)

	var present bool
	if err := c.RollCall(misc.Nothing{}, &present); err != nil || !present {
		t.Errorf("RollCall() = %v, %v", present, err)
	}

	var idle task.Task
	if err := c.GetTask("remote", &idle); !errors.Is(err, ErrNoTask) {
		t.Errorf("GetTask() on an idle generator error = %v, want ErrNoTask", err)
	}

	h, err := g.Submit("m", testRequest(t, fractal.Mandelbrot, 5, 5, 25))
	if err != nil {
		t.Fatal(err)
	}
	c.settings.TaskTimeoutMilliseconds = 5000
	var todo task.Task
	if err := c.GetTask("remote", &todo); err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if todo.WorkerAddress != "remote" || todo.PixelCount() != 25 {
		t.Errorf("GetTask() = %s, want all 25 pixels for remote", todo.String())
	}

	processor := worker.NewProcessor()
	processor.Process(&todo)
	var nothing misc.Nothing
	if err := c.ReturnTask(todo, &nothing); err != nil {
		t.Fatalf("ReturnTask() error = %v", err)
	}
	img, err := h.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	assertSameImage(t, img, referenceRender(h.Request()))
}

func TestDeRegisterWorkerRequeues(t *testing.T) {
	g := testGenerator(t, -1, task.Image)
	c := NewCoordinator(Settings{TaskTimeoutMilliseconds: 5000}, g)

	h, err := g.Submit("j", testRequest(t, fractal.Julia, 3, 3, 10))
	if err != nil {
		t.Fatal(err)
	}
	var handedOut task.Task
	if err := c.GetTask("gone", &handedOut); err != nil {
		t.Fatal(err)
	}
	var nothing misc.Nothing
	if err := c.DeRegisterWorker("gone", &nothing); err != nil {
		t.Fatalf("DeRegisterWorker() error = %v", err)
	}

	var again task.Task
	if err := c.GetTask("other", &again); err != nil {
		t.Fatalf("GetTask() after requeue error = %v", err)
	}
	if again.ID != handedOut.ID || len(again.Results) != 0 {
		t.Errorf("GetTask() = %s, want task %d again with no results", again.String(), handedOut.ID)
	}
	processor := worker.NewProcessor()
	processor.Process(&again)
	if err := c.ReturnTask(again, &nothing); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Wait(context.Background()); err != nil {
		t.Errorf("Wait() error = %v", err)
	}
}

func TestRemoteWorker(t *testing.T) {
	port, err := misc.GetFreePort()
	if err != nil {
		t.Fatal(err)
	}
	address := fmt.Sprintf("localhost:%d", port)

	settings := Settings{ServerAddress: address, TaskGeneration: task.Tile, TileSize: 4, TaskTimeoutMilliseconds: 100, Workers: -1}
	g := NewGenerator(settings)
	defer g.Close()
	c := NewCoordinator(settings, g)
	if err := c.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	defer func() {
		if err := c.Stop(); err != nil {
			t.Errorf("Stop() error = %v", err)
		}
	}()

	w, err := worker.NewWorker(worker.Settings{CoordinatorAddress: address, Host: "localhost"})
	if err != nil {
		t.Fatalf("NewWorker() error = %v", err)
	}
	go w.Run()

	if got := c.Workers(); len(got) != 1 || got[0] != w.Address() {
		t.Errorf("Workers() = %v, want [%s]", got, w.Address())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	r := testRequest(t, fractal.Julia, 10, 9, 40)
	img, err := g.Render(ctx, "julia", r)
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	assertSameImage(t, img, referenceRender(r))

	w.Stop()
	if got := c.Workers(); len(got) != 0 {
		t.Errorf("Workers() after Stop = %v, want none", got)
	}
}

func TestCoordinatorStopTwice(t *testing.T) {
	port, err := misc.GetFreePort()
	if err != nil {
		t.Fatal(err)
	}
	g := testGenerator(t, -1, task.Row)
	c := NewCoordinator(Settings{ServerAddress: fmt.Sprintf("localhost:%d", port)}, g)
	if err := c.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}
