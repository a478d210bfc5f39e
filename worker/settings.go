package worker

import (
	"encoding/json"
	"fmt"

	"fractalexplorer/misc"

	"github.com/BrugadaSyndrome/bslogger"
)

type Settings struct {
	logger bslogger.Logger

	CoordinatorAddress string
	// Host is the address the worker listens on for roll calls
	Host string
}

func NewSettings(settingsFile string) Settings {
	s := Settings{
		logger: bslogger.NewLogger("WorkerSettings", bslogger.Normal, nil),
	}
	err, bytes := misc.ReadFile(settingsFile)
	misc.CheckError(err, s.logger, misc.Fatal)
	misc.CheckError(json.Unmarshal(bytes, &s), s.logger, misc.Fatal)
	misc.CheckError(s.Verify(), s.logger, misc.Fatal)
	s.logger.Debug(s.String())
	return s
}

func (s *Settings) String() string {
	output := "\nWorker settings\n"
	output += fmt.Sprintf("Coordinator Address: %s\n", s.CoordinatorAddress)
	output += fmt.Sprintf("Host: %s\n", s.Host)
	return output
}

func (s *Settings) Verify() error {
	if s.CoordinatorAddress == "" {
		s.CoordinatorAddress = "localhost:51000"
	}
	if s.Host == "" {
		s.Host = "localhost"
	}
	return nil
}
