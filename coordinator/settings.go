package coordinator

import (
	"encoding/json"
	"fmt"
	"runtime"
	"time"

	"fractalexplorer/misc"
	"fractalexplorer/task"

	"github.com/BrugadaSyndrome/bslogger"
)

type Settings struct {
	logger bslogger.Logger

	QueueSize int
	// RollCallSeconds is how often remote workers are checked
	RollCallSeconds int
	ServerAddress   string
	TaskGeneration  task.Generation
	// TaskTimeoutMilliseconds is how long GetTask waits for work before telling a remote worker there is none
	TaskTimeoutMilliseconds int
	TileSize                int
	// Workers is the number of local workers, 0 uses every cpu and a negative value leaves all work to remote workers
	Workers int
}

func NewSettings(settingsFile string) Settings {
	s := Settings{
		logger: bslogger.NewLogger("CoordinatorSettings", bslogger.Normal, nil),
	}
	err, fileBytes := misc.ReadFile(settingsFile)
	misc.CheckError(err, s.logger, misc.Fatal)
	misc.CheckError(json.Unmarshal(fileBytes, &s), s.logger, misc.Fatal)
	misc.CheckError(s.Verify(), s.logger, misc.Fatal)
	s.logger.Debug(s.String())
	return s
}

func DefaultSettings() Settings {
	s := Settings{
		logger: bslogger.NewLogger("CoordinatorSettings", bslogger.Normal, nil),
	}
	misc.CheckError(s.Verify(), s.logger, misc.Fatal)
	return s
}

func (s *Settings) String() string {
	output := "\nCoordinator settings\n"
	output += fmt.Sprintf("Server Address: %s\n", s.ServerAddress)
	output += fmt.Sprintf("Task Generation: %s\n", s.TaskGeneration)
	output += fmt.Sprintf("Tile Size: %d\n", s.TileSize)
	output += fmt.Sprintf("Workers: %d\n", s.Workers)
	return output
}

func (s *Settings) Verify() error {
	if s.QueueSize <= 0 {
		s.QueueSize = 1000
	}
	if s.RollCallSeconds <= 0 {
		s.RollCallSeconds = 60
	}
	if s.ServerAddress == "" {
		s.ServerAddress = "localhost:51000"
	}
	if !s.TaskGeneration.Valid() {
		s.TaskGeneration = task.Row
	}
	if s.TaskTimeoutMilliseconds <= 0 {
		s.TaskTimeoutMilliseconds = 2000
	}
	if s.TileSize <= 0 {
		s.TileSize = 64
	}
	if s.Workers == 0 {
		s.Workers = runtime.NumCPU()
	}
	return nil
}

func (s *Settings) LocalWorkers() int {
	if s.Workers < 0 {
		return 0
	}
	return s.Workers
}

func (s *Settings) TaskTimeout() time.Duration {
	return time.Duration(s.TaskTimeoutMilliseconds) * time.Millisecond
}

func (s *Settings) RollCall() time.Duration {
	return time.Duration(s.RollCallSeconds) * time.Second
}
