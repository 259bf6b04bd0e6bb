package telemetry

import (
	"os"

	"github.com/flanksource/commons/logger"
	"github.com/grafana/pyroscope-go"
)

// StartPyroscope profiles the long running server. Credentials come from
// PYROSCOPE_USER and PYROSCOPE_PASSWORD.
func StartPyroscope(serviceName, address string) {
	_, err := pyroscope.Start(pyroscope.Config{
		ApplicationName:   serviceName,
		ServerAddress:     address,
		BasicAuthUser:     os.Getenv("PYROSCOPE_USER"),
		BasicAuthPassword: os.Getenv("PYROSCOPE_PASSWORD"),
		Logger:            logger.GetLogger("pyroscope"),
		Tags: map[string]string{
			"hostname": os.Getenv("HOSTNAME"),
			"env":      os.Getenv("PYROSCOPE_ENV"),
		},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
		},
	})
	if err != nil {
		logger.Errorf("failed to start pyroscope: %v", err)
		return
	}
	logger.Infof("Sending profiles to %s", address)
}
