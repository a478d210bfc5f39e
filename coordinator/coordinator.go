package coordinator

import (
	"sync"
	"time"

	"fractalexplorer/misc"
	"fractalexplorer/task"

	"github.com/BrugadaSyndrome/bslogger"
	"github.com/BrugadaSyndrome/multirpc"
)

// Coordinator serves the tasks of a Generator to remote workers over RPC
type Coordinator struct {
	clients   map[string]*multirpc.TcpClient
	generator *Generator
	logger    bslogger.Logger
	mutex     sync.Mutex
	quit      chan struct{}
	settings  Settings
	stopOnce  sync.Once

	Server multirpc.TcpServer
}

func NewCoordinator(settings Settings, generator *Generator) *Coordinator {
	logger := bslogger.NewLogger("Coordinator", bslogger.Normal, nil)
	misc.CheckError(settings.Verify(), logger, misc.Fatal)
	return &Coordinator{
		clients:   make(map[string]*multirpc.TcpClient),
		generator: generator,
		logger:    logger,
		quit:      make(chan struct{}),
		settings:  settings,
	}
}

// Run starts the rpc tcp server to allow workers to communicate with the coordinator
func (c *Coordinator) Run() error {
	c.Server = multirpc.NewTcpServer(c, c.settings.ServerAddress, "CoordinatorServer")
	if err := c.Server.Run(); err != nil {
		return err
	}
	go c.tickers()
	return nil
}

// Stop deregisters every worker and stops the server. Calls after the first do nothing.
func (c *Coordinator) Stop() error {
	var err error
	c.stopOnce.Do(func() {
		err = c.stop()
	})
	return err
}

func (c *Coordinator) stop() error {
	close(c.quit)

	c.mutex.Lock()
	addresses := make([]string, 0, len(c.clients))
	for address := range c.clients {
		addresses = append(addresses, address)
	}
	c.mutex.Unlock()

	var nothing misc.Nothing
	for _, address := range addresses {
		misc.CheckError(c.DeRegisterWorker(address, &nothing), c.logger, misc.Warning)
	}
	return c.Server.Stop()
}

func (c *Coordinator) tickers() {
	rollCall := time.NewTicker(c.settings.RollCall())
	heartBeat := time.NewTicker(30 * time.Second)
	defer rollCall.Stop()
	defer heartBeat.Stop()

	for {
		select {
		case <-c.quit:
			return

		case <-rollCall.C:
			c.rollCall()

		case <-heartBeat.C:
			stats := c.generator.Stats()
			c.mutex.Lock()
			c.logger.Infof("Tasks [Generated: %d] [Ingested: %d] [Handed out: %d] [Stale: %d] | Images [Completed: %d] [WIP: %d] | Workers: %d",
				stats.TasksGenerated, stats.TasksIngested, stats.TasksHandedOut, stats.Stale, stats.ImagesCompleted, stats.ImagesInFlight, len(c.clients))
			c.mutex.Unlock()
		}
	}
}

func (c *Coordinator) rollCall() {
	c.mutex.Lock()
	clients := make(map[string]*multirpc.TcpClient, len(c.clients))
	for address, client := range c.clients {
		clients[address] = client
	}
	c.mutex.Unlock()

	var junk misc.Nothing
	for address, client := range clients {
		var present bool
		err := client.Call("Worker.RollCall", junk, &present)
		if err != nil {
			// Cannot communicate with the worker so remove it from the pool
			c.mutex.Lock()
			c.logger.Warningf("Worker %s missed roll call: %s", address, err)
			c.mutex.Unlock()
			var nothing misc.Nothing
			misc.CheckError(c.DeRegisterWorker(address, &nothing), c.logger, misc.Warning)
		}
	}
}

// Workers returns the addresses of the registered workers
func (c *Coordinator) Workers() []string {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	addresses := make([]string, 0, len(c.clients))
	for address := range c.clients {
		addresses = append(addresses, address)
	}
	return addresses
}

func (c *Coordinator) RegisterWorker(workerServerAddress string, reply *misc.Nothing) error {
	// Create a client to communicate with this worker
	client := multirpc.NewTcpClient(workerServerAddress, workerServerAddress)
	err := client.Connect()

	c.mutex.Lock()
	defer c.mutex.Unlock()
	misc.CheckError(err, c.logger, misc.Warning)
	if err != nil {
		return err
	}
	c.clients[workerServerAddress] = &client
	c.logger.Infof("Worker joined: %s", workerServerAddress)
	return nil
}

func (c *Coordinator) DeRegisterWorker(workerServerAddress string, reply *misc.Nothing) error {
	// Put tasks this worker has not returned yet back into the queue
	requeued := c.generator.requeue(workerServerAddress)

	c.mutex.Lock()
	client, ok := c.clients[workerServerAddress]
	delete(c.clients, workerServerAddress)
	c.logger.Infof("Worker left: %s [Requeued: %d]", workerServerAddress, requeued)
	c.mutex.Unlock()

	if ok {
		err := client.Disconnect()
		c.mutex.Lock()
		misc.CheckError(err, c.logger, misc.Warning)
		c.mutex.Unlock()
	}
	return nil
}

func (c *Coordinator) RollCall(nothing misc.Nothing, present *bool) error {
	*present = true
	return nil
}

// GetTask
// Waits up to the task timeout for a task of a current render. ErrNoTask is expected when the generator is idle and
// the worker should ask again
func (c *Coordinator) GetTask(workerAddress string, t *task.Task) error {
	todo, err := c.generator.nextTask(workerAddress, c.settings.TaskTimeout())
	if err != nil {
		return err
	}
	*t = todo
	return nil
}

func (c *Coordinator) ReturnTask(done task.Task, nothing *misc.Nothing) error {
	c.generator.ingest(done)
	return nil
}
