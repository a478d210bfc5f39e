package worker

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"fractalexplorer/misc"
	"fractalexplorer/task"

	"github.com/BrugadaSyndrome/bslogger"
	"github.com/BrugadaSyndrome/multirpc"
)

// Errors the coordinator returns from GetTask. They cross the rpc boundary as text.
const (
	noTaskMessage = "no task available"
	closedMessage = "generator closed"
)

// Worker pulls tasks from a coordinator over RPC, processes them and returns the results
type Worker struct {
	coordinatorAddress string
	done               chan struct{}
	logger             bslogger.Logger
	myAddress          string
	processor          Processor
	quit               chan struct{}
	stopOnce           sync.Once

	ServerClient multirpc.TcpServerClient
}

func NewWorker(settings Settings) (*Worker, error) {
	if err := settings.Verify(); err != nil {
		return nil, err
	}

	// Find a free port to use for this worker
	port, err := misc.GetFreePort()
	if err != nil {
		return nil, err
	}

	worker := &Worker{
		coordinatorAddress: settings.CoordinatorAddress,
		done:               make(chan struct{}),
		myAddress:          fmt.Sprintf("%s:%d", settings.Host, port),
		processor:          NewProcessor(),
		quit:               make(chan struct{}),
	}
	worker.logger = bslogger.NewLogger(fmt.Sprintf("Worker %s", worker.myAddress), bslogger.Normal, nil)
	worker.ServerClient = multirpc.NewTcpServerClient(worker, worker.myAddress, worker.myAddress, settings.CoordinatorAddress, settings.CoordinatorAddress)
	if err := worker.ServerClient.Server.Run(); err != nil {
		return nil, err
	}

	// Register with the coordinator
	if err := worker.ServerClient.Client.Connect(); err != nil {
		misc.CheckError(worker.ServerClient.Server.Stop(), worker.logger, misc.Warning)
		return nil, err
	}
	var nothing misc.Nothing
	if err := worker.ServerClient.Client.Call("Coordinator.RegisterWorker", worker.myAddress, &nothing); err != nil {
		misc.CheckError(worker.ServerClient.Client.Disconnect(), worker.logger, misc.Warning)
		misc.CheckError(worker.ServerClient.Server.Stop(), worker.logger, misc.Warning)
		return nil, err
	}

	return worker, nil
}

func (w *Worker) Address() string {
	return w.myAddress
}

// Run processes tasks until Stop is called or the coordinator shuts down
func (w *Worker) Run() {
	defer close(w.done)
	w.logger.Info("Processing tasks")

	var nothing misc.Nothing
	var startTime = time.Now()
	heartBeat := time.NewTicker(30 * time.Second)
	defer heartBeat.Stop()

	for {
		select {
		case <-w.quit:
			w.shutdown(startTime)
			return
		case <-heartBeat.C:
			w.logger.Infof("Tasks [Completed: %d]", w.processor.TasksCompleted())
		default:
		}

		var taskTodo task.Task
		err := w.ServerClient.Client.Call("Coordinator.GetTask", w.myAddress, &taskTodo)
		if err != nil {
			// This is an expected error. Nothing to render right now
			if strings.Contains(err.Error(), noTaskMessage) {
				continue
			}
			if strings.Contains(err.Error(), closedMessage) {
				w.logger.Info("Coordinator closed")
			} else {
				w.logger.Errorf("Unable to get a task: %s", err.Error())
			}
			w.shutdown(startTime)
			return
		}

		w.processor.Process(&taskTodo)

		err = w.ServerClient.Client.Call("Coordinator.ReturnTask", taskTodo, &nothing)
		if err != nil {
			w.logger.Errorf("Unable to return a task: %s", err.Error())
			w.shutdown(startTime)
			return
		}
	}
}

// Stop asks Run to deregister and shut down after the current task, and waits for it
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		close(w.quit)
	})
	<-w.done
}

func (w *Worker) shutdown(startTime time.Time) {
	w.logger.Info("Done processing tasks")
	w.logger.Debugf("Processed %d tasks in %s", w.processor.TasksCompleted(), time.Since(startTime))

	w.logger.Info("Shutting down")
	var nothing misc.Nothing
	misc.CheckError(w.ServerClient.Client.Call("Coordinator.DeRegisterWorker", w.myAddress, &nothing), w.logger, misc.Warning)
	misc.CheckError(w.ServerClient.Client.Disconnect(), w.logger, misc.Warning)
	misc.CheckError(w.ServerClient.Server.Stop(), w.logger, misc.Warning)
}

func (w *Worker) RollCall(request misc.Nothing, reply *bool) error {
	*reply = true
	return nil
}
