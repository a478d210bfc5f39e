package coordinator

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"fractalexplorer/fractal"
	"fractalexplorer/misc"
	"fractalexplorer/task"
	"fractalexplorer/worker"

	"github.com/BrugadaSyndrome/bslogger"
)

var (
	ErrClosed     = errors.New("generator closed")
	ErrNoTask     = errors.New("no task available")
	ErrSuperseded = errors.New("render superseded")
)

type job struct {
	cancelled chan struct{}
	done      chan struct{}
	err       error
	finished  bool
	image     *image.RGBA
	remaining map[uint]struct{}
	request   fractal.RenderRequest
	started   time.Time
	stream    string
	token     uint64
}

// Generator renders requests with a fixed pool of local workers. Renders are submitted on named streams and a new
// submission on a stream supersedes the render in flight on it, tasks of the old render are dropped by the workers
// and their results are never written.
type Generator struct {
	imageCompletedCount uint
	jobs                map[string]*job
	logger              bslogger.Logger
	mutex               sync.Mutex
	nextID              uint
	quit                chan struct{}
	settings            Settings
	staleCount          uint
	taskGeneratedCount  uint
	taskIngestedCount   uint
	tasksHandedOut      map[string]map[uint]task.Task // keep track of all tasks remote workers have
	tasksTodo           chan task.Task
	tokens              map[string]uint64
	workerWait          *sync.WaitGroup
}

func NewGenerator(settings Settings) *Generator {
	logger := bslogger.NewLogger("Generator", bslogger.Normal, nil)
	misc.CheckError(settings.Verify(), logger, misc.Fatal)

	g := &Generator{
		jobs:           make(map[string]*job),
		logger:         logger,
		quit:           make(chan struct{}),
		settings:       settings,
		tasksHandedOut: make(map[string]map[uint]task.Task),
		tasksTodo:      make(chan task.Task, settings.QueueSize),
		tokens:         make(map[string]uint64),
		workerWait:     &sync.WaitGroup{},
	}

	for i := 0; i < g.settings.LocalWorkers(); i++ {
		g.workerWait.Add(1)
		go g.processTasks()
	}
	g.logger.Infof("Started %d local workers", g.settings.LocalWorkers())

	return g
}

// Handle is a submitted render
type Handle struct {
	generator *Generator
	job       *job
}

func (h *Handle) Token() uint64 {
	return h.job.token
}

func (h *Handle) Request() fractal.RenderRequest {
	return h.job.request
}

// Wait blocks until the render completes, is superseded or the context ends. Ending the context abandons the render.
func (h *Handle) Wait(ctx context.Context) (*image.RGBA, error) {
	select {
	case <-h.job.done:
		return h.job.image, nil
	case <-h.job.cancelled:
		return nil, h.job.err
	case <-ctx.Done():
		h.Cancel()
		select {
		case <-h.job.done:
			return h.job.image, nil
		default:
		}
		return nil, ctx.Err()
	}
}

// Cancel abandons the render if it is still in flight
func (h *Handle) Cancel() {
	g := h.generator
	g.mutex.Lock()
	defer g.mutex.Unlock()
	if g.jobs[h.job.stream] == h.job {
		delete(g.jobs, h.job.stream)
	}
	g.cancel(h.job, context.Canceled)
}

// Submit validates the request and queues its tasks on the stream
func (g *Generator) Submit(stream string, request fractal.RenderRequest) (*Handle, error) {
	if err := request.Validate(); err != nil {
		return nil, err
	}

	tiles := g.settings.TaskGeneration.Split(request.Viewport.Bounds(), g.settings.TileSize)

	g.mutex.Lock()
	select {
	case <-g.quit:
		g.mutex.Unlock()
		return nil, ErrClosed
	default:
	}

	if old, ok := g.jobs[stream]; ok {
		g.cancel(old, ErrSuperseded)
		g.logger.Debugf("Superseded render %d on stream %s", old.token, stream)
	}
	g.tokens[stream]++

	j := &job{
		cancelled: make(chan struct{}),
		done:      make(chan struct{}),
		image:     image.NewRGBA(request.Viewport.Bounds()),
		remaining: make(map[uint]struct{}, len(tiles)),
		request:   request,
		started:   time.Now(),
		stream:    stream,
		token:     g.tokens[stream],
	}
	tasks := make([]task.Task, len(tiles))
	for i, tile := range tiles {
		tasks[i] = task.NewTask(g.nextID, stream, j.token, request, tile)
		j.remaining[g.nextID] = struct{}{}
		g.nextID++
	}
	g.jobs[stream] = j
	g.mutex.Unlock()

	go g.generateTasks(j, tasks)

	return &Handle{generator: g, job: j}, nil
}

// Render submits the request and waits for the image
func (g *Generator) Render(ctx context.Context, stream string, request fractal.RenderRequest) (*image.RGBA, error) {
	h, err := g.Submit(stream, request)
	if err != nil {
		return nil, err
	}
	return h.Wait(ctx)
}

// Close stops the local workers and abandons every render in flight
func (g *Generator) Close() {
	g.mutex.Lock()
	select {
	case <-g.quit:
		g.mutex.Unlock()
		return
	default:
	}
	close(g.quit)
	for stream, j := range g.jobs {
		g.cancel(j, ErrClosed)
		delete(g.jobs, stream)
	}
	g.mutex.Unlock()

	g.workerWait.Wait()
	g.logger.Info("Generator closed")
}

// cancel must be called with the mutex held
func (g *Generator) cancel(j *job, err error) {
	if j.finished {
		return
	}
	j.finished = true
	j.err = err
	close(j.cancelled)
}

func (g *Generator) isCurrent(stream string, token uint64) bool {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	j, ok := g.jobs[stream]
	return ok && j.token == token
}

func (g *Generator) generateTasks(j *job, tasks []task.Task) {
	for _, t := range tasks {
		select {
		case g.tasksTodo <- t:
			g.mutex.Lock()
			g.taskGeneratedCount++
			g.mutex.Unlock()
		case <-j.cancelled:
			return
		case <-g.quit:
			return
		}
	}
}

func (g *Generator) processTasks() {
	defer g.workerWait.Done()

	processor := worker.NewProcessor()
	for {
		select {
		case <-g.quit:
			return
		case t := <-g.tasksTodo:
			// Checked between tasks only, a task that was started is always finished
			if !g.isCurrent(t.Stream, t.Token) {
				g.dropStale()
				continue
			}
			processor.Process(&t)
			g.ingest(t)
		}
	}
}

func (g *Generator) dropStale() {
	g.mutex.Lock()
	g.staleCount++
	g.mutex.Unlock()
}

// nextTask hands a queued task of a current render to a remote worker
func (g *Generator) nextTask(workerAddress string, timeout time.Duration) (task.Task, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-g.quit:
			return task.Task{}, ErrClosed
		case <-timer.C:
			return task.Task{}, ErrNoTask
		case t := <-g.tasksTodo:
			g.mutex.Lock()
			j, ok := g.jobs[t.Stream]
			if !ok || j.token != t.Token {
				g.staleCount++
				g.mutex.Unlock()
				continue
			}
			t.WorkerAddress = workerAddress
			if _, ok := g.tasksHandedOut[workerAddress]; !ok {
				g.tasksHandedOut[workerAddress] = make(map[uint]task.Task)
			}
			g.tasksHandedOut[workerAddress][t.ID] = t
			g.mutex.Unlock()
			return t, nil
		}
	}
}

// requeue puts the unreturned tasks of a remote worker back into the queue
func (g *Generator) requeue(workerAddress string) int {
	g.mutex.Lock()
	var tasks []task.Task
	for _, t := range g.tasksHandedOut[workerAddress] {
		if j, ok := g.jobs[t.Stream]; ok && j.token == t.Token {
			t.Reset()
			tasks = append(tasks, t)
		}
	}
	delete(g.tasksHandedOut, workerAddress)
	g.mutex.Unlock()

	go func() {
		for _, t := range tasks {
			select {
			case g.tasksTodo <- t:
			case <-g.quit:
				return
			}
		}
	}()
	return len(tasks)
}

// ingest records the pixels of a finished task on its image. Results of superseded renders and tasks that were
// already returned once are dropped.
func (g *Generator) ingest(t task.Task) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	g.taskIngestedCount++
	if handedOut, ok := g.tasksHandedOut[t.WorkerAddress]; ok {
		delete(handedOut, t.ID)
	}

	j, ok := g.jobs[t.Stream]
	if !ok || j.token != t.Token {
		g.staleCount++
		return
	}
	if _, ok := j.remaining[t.ID]; !ok {
		return
	}
	if len(t.Results) != t.PixelCount() {
		// Hand the task out again so the render can still complete
		g.logger.Warningf("Task %d returned %d of %d pixels, requeueing", t.ID, len(t.Results), t.PixelCount())
		t.Reset()
		go func() {
			select {
			case g.tasksTodo <- t:
			case <-g.quit:
			}
		}()
		return
	}

	bounds := j.image.Bounds()
	for _, pixel := range t.Results {
		if (image.Point{X: pixel.Column, Y: pixel.Row}).In(bounds) {
			j.image.SetRGBA(pixel.Column, pixel.Row, pixel.Color)
		}
	}
	delete(j.remaining, t.ID)

	// All tasks have been recorded so the image is complete
	if len(j.remaining) == 0 {
		j.finished = true
		close(j.done)
		delete(g.jobs, t.Stream)
		g.imageCompletedCount++
		g.logger.Debugf("Rendered %s in %s", j.request, time.Since(j.started))
	}
}

type Stats struct {
	ImagesCompleted uint
	ImagesInFlight  int
	Stale           uint
	TasksGenerated  uint
	TasksHandedOut  int
	TasksIngested   uint
}

func (g *Generator) Stats() Stats {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	handedOut := 0
	for _, tasks := range g.tasksHandedOut {
		handedOut += len(tasks)
	}
	return Stats{
		ImagesCompleted: g.imageCompletedCount,
		ImagesInFlight:  len(g.jobs),
		Stale:           g.staleCount,
		TasksGenerated:  g.taskGeneratedCount,
		TasksHandedOut:  handedOut,
		TasksIngested:   g.taskIngestedCount,
	}
}
