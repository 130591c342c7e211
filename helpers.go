package main

import (
	"os"

	"github.com/mgmeyers/unipdf/v3/common"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type logger = logrus.FieldLogger

var errOpacity = errors.New("opacity must be in (0, 1]")

func newLogger(verbose bool) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	if verbose {
		log.SetLevel(logrus.DebugLevel)
		common.SetLogger(common.NewConsoleLogger(common.LogLevelDebug))
	} else {
		log.SetLevel(logrus.InfoLevel)
	}

	return log
}

func endIfErr(log logger, e error) {
	if e != nil {
		log.Fatalln(e)
	}
}
